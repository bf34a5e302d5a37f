package extraction

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// decodeStrategy pulls a JSON document candidate out of a model response
type decodeStrategy struct {
	name    string
	extract func(body string) (string, bool)
}

var fencedBlock = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)```")

// decodeStrategies are tried in order; the first one that yields a valid document wins
var decodeStrategies = []decodeStrategy{
	{name: "whole", extract: wholeBody},
	{name: "fenced", extract: fencedJSON},
	{name: "braces", extract: braceSpan},
}

func wholeBody(body string) (string, bool) {
	body = strings.TrimSpace(body)
	return body, strings.HasPrefix(body, "{")
}

func fencedJSON(body string) (string, bool) {
	m := fencedBlock.FindStringSubmatch(body)
	if m == nil {
		return "", false
	}
	return strings.TrimSpace(m[1]), true
}

func braceSpan(body string) (string, bool) {
	start := strings.Index(body, "{")
	end := strings.LastIndex(body, "}")
	if start < 0 || end <= start {
		return "", false
	}
	return body[start : end+1], true
}

// decodeResult runs the strategies against a model response
func decodeResult(body string) (*RawResult, error) {
	for _, s := range decodeStrategies {
		doc, ok := s.extract(body)
		if !ok {
			continue
		}
		var result RawResult
		if err := json.Unmarshal([]byte(doc), &result); err == nil {
			return &result, nil
		}
	}
	return nil, fmt.Errorf("%w: no strategy produced a document", ErrMalformed)
}
