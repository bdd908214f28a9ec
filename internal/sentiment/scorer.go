package sentiment

import (
	"strings"
)

// Scorer assigns a polarity in [-1, 1] to a piece of text about the
// tracked ticker.
type Scorer interface {
	Score(title, body string) Result
}

type Result struct {
	Score      float64
	Confidence float64
	Label      string
}

// Lexicon is a keyword scorer tuned for equity headlines. Terms carry
// weights so that "beats estimates" moves the needle further than a bare
// "up". It is deliberately cheap: the pipeline scores thousands of
// documents per run and a mis-scored headline washes out in the daily
// aggregate.
type Lexicon struct {
	positive map[string]float64
	negative map[string]float64
}

func NewLexicon() *Lexicon {
	return &Lexicon{
		positive: map[string]float64{
			"beat":      1.5,
			"beats":     1.5,
			"upgrade":   1.5,
			"surge":     1.2,
			"rally":     1.2,
			"record":    1.0,
			"growth":    1.0,
			"profit":    1.0,
			"buyback":   1.0,
			"dividend":  0.8,
			"bullish":   1.2,
			"outperform": 1.2,
			"soar":      1.2,
			"gain":      0.8,
			"strong":    0.8,
			"up":        0.5,
		},
		negative: map[string]float64{
			"miss":       1.5,
			"misses":     1.5,
			"downgrade":  1.5,
			"plunge":     1.2,
			"crash":      1.5,
			"lawsuit":    1.2,
			"probe":      1.0,
			"recall":     1.0,
			"layoff":     1.0,
			"layoffs":    1.0,
			"bearish":    1.2,
			"underperform": 1.2,
			"loss":       1.0,
			"weak":       0.8,
			"decline":    0.8,
			"down":       0.5,
			"sell-off":   1.2,
			"bankruptcy": 2.0,
		},
	}
}

func (l *Lexicon) Score(title, body string) Result {
	text := strings.ToLower(strings.TrimSpace(title + " " + body))
	if text == "" {
		return Result{Score: 0, Confidence: 0.25, Label: "neutral"}
	}

	words := strings.FieldsFunc(text, func(r rune) bool {
		return !((r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-')
	})

	var pos, neg float64
	var hits int
	for i, w := range words {
		pw, isPos := l.positive[w]
		nw, isNeg := l.negative[w]
		if !isPos && !isNeg {
			continue
		}
		hits++
		// "not higher" and friends flip the term they precede.
		if i > 0 && negator(words[i-1]) {
			pw, nw = nw, pw
		}
		pos += pw
		neg += nw
	}

	if hits == 0 {
		return Result{Score: 0, Confidence: 0.25, Label: "neutral"}
	}

	score := clamp((pos-neg)/(pos+neg+1), -1, 1)
	confidence := clamp(0.35+0.08*float64(hits), 0.25, 0.75)

	label := "neutral"
	if score > 0.2 {
		label = "positive"
	} else if score < -0.2 {
		label = "negative"
	}
	return Result{Score: score, Confidence: confidence, Label: label}
}

func negator(w string) bool {
	switch w {
	case "not", "no", "never", "without":
		return true
	}
	return false
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
