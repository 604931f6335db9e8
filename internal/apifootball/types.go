package apifootball

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Envelope is the common API-Football response wrapper.
type Envelope[T any] struct {
	Get      string          `json:"get"`
	Results  int             `json:"results"`
	Errors   json.RawMessage `json:"errors,omitempty"`
	Response []T             `json:"response"`
}

// Err returns the provider-reported error, if any. API-Football answers 200
// with a non-empty "errors" object for bad keys or exhausted quotas.
func (e *Envelope[T]) Err() error {
	raw := bytes.TrimSpace(e.Errors)
	if len(raw) == 0 || bytes.Equal(raw, []byte("[]")) || bytes.Equal(raw, []byte("{}")) || bytes.Equal(raw, []byte("null")) {
		return nil
	}
	var byField map[string]string
	if err := json.Unmarshal(raw, &byField); err == nil && len(byField) > 0 {
		parts := make([]string, 0, len(byField))
		for k, v := range byField {
			parts = append(parts, k+": "+v)
		}
		return fmt.Errorf("api-football: %s", strings.Join(parts, "; "))
	}
	return fmt.Errorf("api-football: %s", string(raw))
}

// Ref is an id/name pair. Both are optional in provider payloads.
type Ref struct {
	ID   *int   `json:"id"`
	Name string `json:"name"`
}

// IDString returns the id as a string, or "" when absent.
func (r Ref) IDString() string {
	if r.ID == nil {
		return ""
	}
	return strconv.Itoa(*r.ID)
}

// FixtureRecord is one entry of the fixtures endpoint.
type FixtureRecord struct {
	Fixture struct {
		ID    *int   `json:"id"`
		Date  string `json:"date"`
		Venue struct {
			Name string `json:"name"`
			City string `json:"city"`
		} `json:"venue"`
		Status struct {
			Short   string `json:"short"`
			Elapsed *int   `json:"elapsed"`
		} `json:"status"`
	} `json:"fixture"`
	League struct {
		ID      *int   `json:"id"`
		Name    string `json:"name"`
		Country string `json:"country"`
		Season  *int   `json:"season"`
		Round   string `json:"round"`
	} `json:"league"`
	Teams struct {
		Home Ref `json:"home"`
		Away Ref `json:"away"`
	} `json:"teams"`
	Goals GoalPair `json:"goals"`
	Score struct {
		Halftime GoalPair `json:"halftime"`
		Fulltime GoalPair `json:"fulltime"`
	} `json:"score"`
}

// GoalPair is a home/away goal count with nullable sides.
type GoalPair struct {
	Home *int `json:"home"`
	Away *int `json:"away"`
}

// EventRecord is one entry of the fixtures/events endpoint.
type EventRecord struct {
	Time struct {
		Elapsed *int `json:"elapsed"`
		Extra   *int `json:"extra"`
	} `json:"time"`
	Team     Ref     `json:"team"`
	Player   Ref     `json:"player"`
	Assist   Ref     `json:"assist"`
	Type     string  `json:"type"`
	Detail   string  `json:"detail"`
	Comments *string `json:"comments"`
}

// Minute folds stoppage time into the elapsed minute.
func (e EventRecord) Minute() int {
	m := 0
	if e.Time.Elapsed != nil {
		m = *e.Time.Elapsed
	}
	if e.Time.Extra != nil {
		m += *e.Time.Extra
	}
	return m
}

// LineupPlayer is one entry of startXI or substitutes.
type LineupPlayer struct {
	Player struct {
		ID     *int   `json:"id"`
		Name   string `json:"name"`
		Number *int   `json:"number"`
		Pos    string `json:"pos"`
		Grid   string `json:"grid"`
	} `json:"player"`
}

// LineupRecord is one team entry of the fixtures/lineups endpoint.
type LineupRecord struct {
	Team        Ref            `json:"team"`
	Formation   string         `json:"formation"`
	StartXI     []LineupPlayer `json:"startXI"`
	Substitutes []LineupPlayer `json:"substitutes"`
}

// StatisticItem is one named team statistic.
type StatisticItem struct {
	Type  string    `json:"type"`
	Value StatValue `json:"value"`
}

// StatisticsRecord is one team entry of the fixtures/statistics endpoint.
type StatisticsRecord struct {
	Team       Ref             `json:"team"`
	Statistics []StatisticItem `json:"statistics"`
}

// PlayerStatistics is the per-match statistics block for one player.
type PlayerStatistics struct {
	Games struct {
		Minutes    *int      `json:"minutes"`
		Number     *int      `json:"number"`
		Position   string    `json:"position"`
		Rating     StatValue `json:"rating"`
		Captain    bool      `json:"captain"`
		Substitute bool      `json:"substitute"`
	} `json:"games"`
	Shots struct {
		Total *int `json:"total"`
		On    *int `json:"on"`
	} `json:"shots"`
	Goals struct {
		Total   *int `json:"total"`
		Assists *int `json:"assists"`
	} `json:"goals"`
	Passes struct {
		Total    *int      `json:"total"`
		Key      *int      `json:"key"`
		Accuracy StatValue `json:"accuracy"`
	} `json:"passes"`
	Tackles struct {
		Total         *int `json:"total"`
		Blocks        *int `json:"blocks"`
		Interceptions *int `json:"interceptions"`
	} `json:"tackles"`
	Duels struct {
		Total *int `json:"total"`
		Won   *int `json:"won"`
	} `json:"duels"`
	Dribbles struct {
		Attempts *int `json:"attempts"`
		Success  *int `json:"success"`
	} `json:"dribbles"`
	Cards struct {
		Yellow *int `json:"yellow"`
		Red    *int `json:"red"`
	} `json:"cards"`
}

// PlayerEntry pairs a player with their statistics blocks.
type PlayerEntry struct {
	Player     Ref                `json:"player"`
	Statistics []PlayerStatistics `json:"statistics"`
}

// PlayersRecord is one team entry of the fixtures/players endpoint.
type PlayersRecord struct {
	Team    Ref           `json:"team"`
	Players []PlayerEntry `json:"players"`
}

type (
	FixtureResponse    = Envelope[FixtureRecord]
	EventsResponse     = Envelope[EventRecord]
	LineupsResponse    = Envelope[LineupRecord]
	StatisticsResponse = Envelope[StatisticsRecord]
	PlayersResponse    = Envelope[PlayersRecord]
)

// StatValue decodes the loosely typed statistic values API-Football returns:
// null, integers, floats, "55%" and "1.23".
type StatValue struct {
	Number *float64
	Raw    string
}

// UnmarshalJSON implements json.Unmarshaler.
func (v *StatValue) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*v = StatValue{}
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		v.Raw = s
		v.Number = parseNumber(s)
		return nil
	}
	if bytes.Equal(data, []byte("true")) || bytes.Equal(data, []byte("false")) {
		v.Raw = string(data)
		return nil
	}
	f, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return fmt.Errorf("stat value %s: %w", data, err)
	}
	v.Raw = string(data)
	v.Number = &f
	return nil
}

// MarshalJSON keeps cache files round-trippable.
func (v StatValue) MarshalJSON() ([]byte, error) {
	if v.Number == nil && v.Raw == "" {
		return []byte("null"), nil
	}
	if v.Number != nil && !strings.ContainsAny(v.Raw, "%\"") && v.Raw == strconv.FormatFloat(*v.Number, 'f', -1, 64) {
		return []byte(v.Raw), nil
	}
	return json.Marshal(v.Raw)
}

// Valid reports whether the value parsed as a number.
func (v StatValue) Valid() bool { return v.Number != nil }

// Int returns the value rounded to an int.
func (v StatValue) Int() *int {
	if v.Number == nil {
		return nil
	}
	n := int(*v.Number + 0.5)
	if *v.Number < 0 {
		n = int(*v.Number - 0.5)
	}
	return &n
}

// Float returns the numeric value.
func (v StatValue) Float() *float64 {
	if v.Number == nil {
		return nil
	}
	f := *v.Number
	return &f
}

func parseNumber(s string) *float64 {
	s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "%"))
	if s == "" {
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &f
}
