package lyrics

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Word is one word of an enhanced LRC line. Times are in seconds.
type Word struct {
	Word      string  `json:"word"`
	StartTime float64 `json:"startTime"`
	EndTime   float64 `json:"endTime"`
}

// Line is one displayed lyric line starting at Time seconds.
type Line struct {
	Time  float64 `json:"time"`
	Text  string  `json:"text"`
	Words []Word  `json:"words,omitempty"`
}

var (
	lineTag = regexp.MustCompile(`^\[(\d{1,3}):(\d{1,2})(?:[.:](\d{1,3}))?\]`)
	wordTag = regexp.MustCompile(`<(\d{1,3}):(\d{1,2})(?:[.:](\d{1,3}))?>`)
)

// seconds converts captured mm, ss and an optional fraction to seconds.
func seconds(m []string) float64 {
	mins, _ := strconv.Atoi(m[1])
	secs, _ := strconv.Atoi(m[2])
	t := float64(mins*60 + secs)
	if frac := m[3]; frac != "" {
		n, _ := strconv.Atoi(frac)
		div := 1.0
		for range frac {
			div *= 10
		}
		t += float64(n) / div
	}
	return t
}

// ParseLRC parses LRC text into lines sorted by time. A line may carry
// several leading timestamps; metadata tags such as [ar:...] and untimed
// lines are dropped. Enhanced <mm:ss.xx> word tags populate Words.
func ParseLRC(src string) []Line {
	var lines []Line
	for _, raw := range strings.Split(strings.ReplaceAll(src, "\r\n", "\n"), "\n") {
		raw = strings.TrimSpace(raw)
		var times []float64
		for {
			m := lineTag.FindStringSubmatch(raw)
			if m == nil {
				break
			}
			times = append(times, seconds(m))
			raw = raw[len(m[0]):]
		}
		if len(times) == 0 {
			continue
		}
		text, words := parseWords(strings.TrimSpace(raw))
		for _, t := range times {
			lines = append(lines, Line{Time: t, Text: text, Words: words})
		}
	}
	sort.SliceStable(lines, func(i, j int) bool { return lines[i].Time < lines[j].Time })

	for i := range lines {
		n := len(lines[i].Words)
		if n == 0 {
			continue
		}
		// copy so repeated timestamps don't share a slice
		words := append([]Word(nil), lines[i].Words...)
		end := words[n-1].StartTime
		if i+1 < len(lines) && lines[i+1].Time > end {
			end = lines[i+1].Time
		}
		words[n-1].EndTime = end
		lines[i].Words = words
	}
	if lines == nil {
		lines = []Line{}
	}
	return lines
}

// parseWords strips word tags from text, returning the plain text and the
// timed words. Text without word tags yields no words.
func parseWords(text string) (string, []Word) {
	locs := wordTag.FindAllStringSubmatchIndex(text, -1)
	if len(locs) == 0 {
		return text, nil
	}
	var words []Word
	for i, loc := range locs {
		m := []string{text[loc[0]:loc[1]], text[loc[2]:loc[3]], text[loc[4]:loc[5]], ""}
		if loc[6] >= 0 {
			m[3] = text[loc[6]:loc[7]]
		}
		end := len(text)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		w := strings.TrimSpace(text[loc[1]:end])
		if w == "" {
			continue
		}
		words = append(words, Word{Word: w, StartTime: seconds(m)})
	}
	for i := 0; i+1 < len(words); i++ {
		words[i].EndTime = words[i+1].StartTime
	}
	parts := make([]string, len(words))
	for i, w := range words {
		parts[i] = w.Word
	}
	return strings.Join(parts, " "), words
}

// PlainLines splits unsynced lyrics into untimed lines, skipping blanks.
func PlainLines(text string) []Line {
	lines := []Line{}
	for _, raw := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		if raw = strings.TrimSpace(raw); raw != "" {
			lines = append(lines, Line{Text: raw})
		}
	}
	return lines
}
