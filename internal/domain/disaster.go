package domain

import (
	"regexp"
	"strings"
)

// DisasterType labels the kind of dispatch an alert mail announces.
type DisasterType string

const (
	DisasterEmergency DisasterType = "EMERGENCY"
	DisasterFire      DisasterType = "FIRE"
	DisasterRescue    DisasterType = "RESCUE"
	DisasterGeneral   DisasterType = "DISASTER"
	DisasterAlert     DisasterType = "ALERT"
	DisasterUnknown   DisasterType = "UNKNOWN"
)

// AddressUnknown is the sentinel stored when no address pattern matches.
const AddressUnknown = "住所不明"

// disasterKeywords is scanned in order; the first keyword present wins.
var disasterKeywords = []struct {
	keyword string
	label   DisasterType
}{
	{"救急", DisasterEmergency},
	{"火災", DisasterFire},
	{"救助", DisasterRescue},
	{"災害", DisasterGeneral},
	{"警戒", DisasterAlert},
}

// addressRe matches a Fukuoka-style municipal address: the whole kanji run
// ending in 区 (so a 福岡市 city prefix is kept), optional whitespace, a
// kanji/katakana town name, an optional N丁目 block with optional N番 lot,
// and an optional 付近 suffix. Digits may be ASCII or full-width.
var addressRe = regexp.MustCompile(`\p{Han}+?区\s*[\p{Han}\p{Katakana}ー]*(?:[0-9０-９]+丁目(?:[0-9０-９]+番地?)?)?(?:付近)?`)

// Keyword returns the source-language keyword for the label.
func (t DisasterType) Keyword() string {
	for _, k := range disasterKeywords {
		if k.label == t {
			return k.keyword
		}
	}
	return "不明"
}

// ParseDisasterType maps a label back to its DisasterType, accepting either
// the upper-case label or the source keyword. Unrecognized input is UNKNOWN.
func ParseDisasterType(s string) DisasterType {
	s = strings.TrimSpace(s)
	for _, k := range disasterKeywords {
		if strings.EqualFold(s, string(k.label)) || s == k.keyword {
			return k.label
		}
	}
	return DisasterUnknown
}

// ClassifyDisasterType returns the label of the first keyword, in priority
// order, that occurs anywhere in text.
func ClassifyDisasterType(text string) DisasterType {
	for _, k := range disasterKeywords {
		if strings.Contains(text, k.keyword) {
			return k.label
		}
	}
	return DisasterUnknown
}

// ExtractFirstLine returns the first newline-delimited segment of text with
// surrounding whitespace trimmed.
func ExtractFirstLine(text string) string {
	first, _, _ := strings.Cut(text, "\n")
	return strings.TrimSpace(first)
}

// ExtractAddress returns the first municipal address found in text, or
// AddressUnknown.
func ExtractAddress(text string) string {
	if m := addressRe.FindString(text); m != "" {
		return strings.TrimSpace(m)
	}
	return AddressUnknown
}
