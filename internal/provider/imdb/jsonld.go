package imdb

import (
	"encoding/json"
	"strings"
)

// ldTitle 是详情页 JSON-LD（schema.org Movie/TVSeries）中我们关心的部分。
type ldTitle struct {
	Type            string     `json:"@type"`
	Name            string     `json:"name"`
	Image           string     `json:"image"`
	Description     string     `json:"description"`
	DatePublished   string     `json:"datePublished"`
	Genre           stringList `json:"genre"`
	Director        personList `json:"director"`
	Actor           personList `json:"actor"`
	AggregateRating *struct {
		RatingValue json.Number `json:"ratingValue"`
	} `json:"aggregateRating"`
}

type ldPerson struct {
	Type string `json:"@type"`
	Name string `json:"name"`
}

// stringList 兼容 "Drama" 与 ["Drama","Sci-Fi"] 两种形态。
type stringList []string

func (l *stringList) UnmarshalJSON(b []byte) error {
	b = []byte(strings.TrimSpace(string(b)))
	if len(b) == 0 || string(b) == "null" {
		*l = nil
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*l = stringList{s}
		return nil
	}
	var ss []string
	if err := json.Unmarshal(b, &ss); err != nil {
		return err
	}
	*l = ss
	return nil
}

// personList 兼容单个对象与对象数组两种形态；只保留 @type=Person 的条目。
type personList []ldPerson

func (l *personList) UnmarshalJSON(b []byte) error {
	b = []byte(strings.TrimSpace(string(b)))
	if len(b) == 0 || string(b) == "null" {
		*l = nil
		return nil
	}
	var ps []ldPerson
	if b[0] == '{' {
		var p ldPerson
		if err := json.Unmarshal(b, &p); err != nil {
			return err
		}
		ps = []ldPerson{p}
	} else if err := json.Unmarshal(b, &ps); err != nil {
		return err
	}
	out := make([]ldPerson, 0, len(ps))
	for _, p := range ps {
		if p.Type != "" && p.Type != "Person" {
			continue
		}
		out = append(out, p)
	}
	*l = out
	return nil
}
