package utils

import (
	"errors"
	"strings"

	"github.com/tidwall/gjson"
)

var (
	ErrGjsonNotFound  = errors.New("specified path does not exist")
	ErrGjsonWrongType = errors.New("wrong type")
)

// EnvelopeResult extracts the result field of an API response envelope.
// A missing result yields an empty gjson.Result and ErrGjsonNotFound.
func EnvelopeResult(body []byte) (gjson.Result, error) {
	if !gjson.ValidBytes(body) {
		return gjson.Result{}, ErrGjsonWrongType
	}
	result := gjson.GetBytes(body, "result")
	if !result.Exists() {
		return result, ErrGjsonNotFound
	}
	return result, nil
}

// GjsonParseStringMap flattens a JSON object into string values, as used for
// custom webhook headers. Blank input yields nil.
func GjsonParseStringMap(jsonObject string) (map[string]string, error) {
	jsonObject = strings.TrimSpace(jsonObject)
	if jsonObject == "" {
		return nil, nil
	}
	result := gjson.Parse(jsonObject)
	if !gjson.Valid(jsonObject) || !result.IsObject() {
		return nil, ErrGjsonWrongType
	}
	ret := make(map[string]string)
	result.ForEach(func(key, value gjson.Result) bool {
		ret[key.String()] = value.String()
		return true
	})
	return ret, nil
}
