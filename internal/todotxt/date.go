package todotxt

import (
	"fmt"
	"time"
)

const dateLayoutLen = len("2006-01-02")

// Date is a calendar date as written in todo.txt. Zero fields mean the date
// is absent.
type Date struct {
	Year  uint16 `yaml:"year" json:"year"`
	Month uint8  `yaml:"month" json:"month"`
	Day   uint8  `yaml:"day" json:"day"`
}

// Valid reports whether every field is set. Ranges are not checked.
func (d Date) Valid() bool {
	return d.Year != 0 && d.Month != 0 && d.Day != 0
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
}

// Time converts d to midnight UTC. Out-of-range months and days are
// normalized by time.Date.
func (d Date) Time() time.Time {
	return time.Date(int(d.Year), time.Month(d.Month), int(d.Day), 0, 0, 0, 0, time.UTC)
}

// DateOf returns the calendar date of t in t's location.
func DateOf(t time.Time) Date {
	return Date{Year: uint16(t.Year()), Month: uint8(t.Month()), Day: uint8(t.Day())}
}

// ParseDate reads a YYYY-MM-DD word. Only 10-byte words are scanned. Scanning
// stops at the first byte that does not fit, leaving the remaining fields
// zero; no error is reported and 2024-13-99 is accepted as is.
func ParseDate(word string) Date {
	var d Date
	if len(word) != dateLayoutLen {
		return d
	}
	s := dateScanner{s: word}
	year, ok := s.number(4)
	if !ok {
		return d
	}
	d.Year = uint16(year)
	if !s.literal('-') {
		return d
	}
	month, ok := s.number(2)
	if !ok {
		return d
	}
	d.Month = uint8(month)
	if !s.literal('-') {
		return d
	}
	day, ok := s.number(2)
	if !ok {
		return d
	}
	d.Day = uint8(day)
	return d
}

type dateScanner struct {
	s   string
	pos int
}

// number reads between one and width digits.
func (sc *dateScanner) number(width int) (int, bool) {
	n, read := 0, 0
	for read < width && sc.pos < len(sc.s) && isDigit(sc.s[sc.pos]) {
		n = n*10 + int(sc.s[sc.pos]-'0')
		sc.pos++
		read++
	}
	return n, read > 0
}

func (sc *dateScanner) literal(b byte) bool {
	if sc.pos >= len(sc.s) || sc.s[sc.pos] != b {
		return false
	}
	sc.pos++
	return true
}
