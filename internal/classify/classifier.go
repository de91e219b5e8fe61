package classify

import (
	"regexp"
	"strconv"
	"time"
)

// timestampLayout is the leading timestamp every recognized line carries.
const timestampLayout = "2006/01/02 15:04:05"

// prefixRe splits the line into timestamp, sequence number, and payload.
// Lines without this prefix are unrecognized.
var prefixRe = regexp.MustCompile(`^(\d{4}/\d{2}/\d{2} \d{2}:\d{2}:\d{2}) (\d+) (.+)$`)

// Payload patterns, matched in order. First match wins.
var (
	bagRe     = regexp.MustCompile(`^\[Bag\] (modify|init) page=(\d+) slot=(\d+) item=(\d+) count=(\d+)$`)
	protoRe   = regexp.MustCompile(`^\[Proto\] (begin|end) proto="([^"]+)"$`)
	enterRe   = regexp.MustCompile(`^\[Area\] enter path="([^"]+)"$`)
	levelRe   = regexp.MustCompile(`^\[Area\] level uid=(\d+) type=(\d+) id=(\d+)$`)
	queryRe   = regexp.MustCompile(`^\[Shop\] query item=(\d+)$`)
	listingRe = regexp.MustCompile(`^\[Shop\] listing item=(\d+) price=(\d+(?:\.\d+)?)$`)
	clientRe  = regexp.MustCompile(`^\[Client\] (\w+)="([^"]*)"$`)
)

// Classify turns one raw log line into a typed event. It is total:
// anything it cannot fully parse comes back as Unrecognized, never an
// error and never a partial event.
func Classify(line string) Event {
	parts := prefixRe.FindStringSubmatch(line)
	if parts == nil {
		return Unrecognized{}
	}

	ts, err := time.ParseInLocation(timestampLayout, parts[1], time.Local)
	if err != nil {
		return Unrecognized{}
	}

	payload := parts[3]

	if m := bagRe.FindStringSubmatch(payload); m != nil {
		return classifyBag(ts, m)
	}
	if m := protoRe.FindStringSubmatch(payload); m != nil {
		return ContextMark{Time: ts, Start: m[1] == "begin", Proto: m[2]}
	}
	if m := enterRe.FindStringSubmatch(payload); m != nil {
		return ZoneEnter{Time: ts, Path: m[1]}
	}
	if m := levelRe.FindStringSubmatch(payload); m != nil {
		return classifyLevel(ts, m)
	}
	if m := queryRe.FindStringSubmatch(payload); m != nil {
		item, err := strconv.Atoi(m[1])
		if err != nil {
			return Unrecognized{}
		}
		return ExchangeQuery{Time: ts, Item: item}
	}
	if m := listingRe.FindStringSubmatch(payload); m != nil {
		return classifyListing(ts, m)
	}
	if m := clientRe.FindStringSubmatch(payload); m != nil {
		return Identity{Time: ts, Key: m[1], Value: m[2]}
	}

	return Unrecognized{}
}

func classifyBag(ts time.Time, m []string) Event {
	page, err1 := strconv.Atoi(m[2])
	slot, err2 := strconv.Atoi(m[3])
	item, err3 := strconv.Atoi(m[4])
	count, err4 := strconv.Atoi(m[5])
	if err1 != nil || err2 != nil || err3 != nil || err4 != nil {
		return Unrecognized{}
	}
	return BagMutation{
		Time:  ts,
		Page:  page,
		Slot:  slot,
		Item:  item,
		Count: count,
		Init:  m[1] == "init",
	}
}

func classifyLevel(ts time.Time, m []string) Event {
	uid, err1 := strconv.ParseInt(m[1], 10, 64)
	typ, err2 := strconv.Atoi(m[2])
	id, err3 := strconv.ParseInt(m[3], 10, 64)
	if err1 != nil || err2 != nil || err3 != nil {
		return Unrecognized{}
	}
	return LevelInfo{Time: ts, UID: uid, Type: typ, ID: id}
}

func classifyListing(ts time.Time, m []string) Event {
	item, err1 := strconv.Atoi(m[1])
	price, err2 := strconv.ParseFloat(m[2], 64)
	if err1 != nil || err2 != nil {
		return Unrecognized{}
	}
	return ExchangeListing{Time: ts, Item: item, Price: price}
}
