package catalog

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrEntryNotFound = errors.New("catalog entry not found")

// Entry is a persisted catalog entry, Image holds the raw picture bytes
type Entry struct {
	ID               uuid.UUID
	SequentialNumber int
	Name             string
	TypeCode         int
	Image            []byte
	CreatedAt        time.Time
}

// Summary is the entry metadata without the image
type Summary struct {
	ID               uuid.UUID `json:"id"`
	Name             string    `json:"name"`
	SequentialNumber int       `json:"sequentialNumber"`
	TypeCode         int       `json:"typeCode"`
}

func (e *Entry) Summary() Summary {
	return Summary{
		ID:               e.ID,
		Name:             e.Name,
		SequentialNumber: e.SequentialNumber,
		TypeCode:         e.TypeCode,
	}
}

type NewEntry struct {
	Name     string
	TypeCode int
	Image    []byte
}

const (
	MinTypeCode = 1
	MaxTypeCode = 18
)

// TypeNames maps a type code to its display name
var TypeNames = map[int]string{
	1:  "normal",
	2:  "fighting",
	3:  "flying",
	4:  "poison",
	5:  "ground",
	6:  "rock",
	7:  "bug",
	8:  "ghost",
	9:  "steel",
	10: "fire",
	11: "water",
	12: "grass",
	13: "electric",
	14: "psychic",
	15: "ice",
	16: "dragon",
	17: "dark",
	18: "fairy",
}
