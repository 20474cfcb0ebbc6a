// Package feature pulls structured fragments (dates, times, links, money
// amounts) and coarse structural flags out of an email's text.
package feature

import (
	"regexp"
	"strings"

	"mailtriage/internal/model"
)

var (
	dateRe   = regexp.MustCompile(`\b\d{1,2}[/-]\d{1,2}[/-]\d{2,4}\b|\b\d{4}-\d{2}-\d{2}\b`)
	timeRe   = regexp.MustCompile(`\b\d{1,2}:\d{2}\s*(?:AM|PM|am|pm)?\b`)
	urlRe    = regexp.MustCompile(`https?://[^\s<>"'` + "`" + `]+`)
	amountRe = regexp.MustCompile(`\$\d+(?:,\d{3})*(?:\.\d{2})?`)

	anyDateRe  = regexp.MustCompile(`\d{1,2}[/-]\d{1,2}[/-]\d{2,4}`)
	anyTimeRe  = regexp.MustCompile(`\d{1,2}:\d{2}`)
	emailRe    = regexp.MustCompile(`\S+@\S+`)
	digitRe    = regexp.MustCompile(`\d`)
	urlStartRe = regexp.MustCompile(`https?://`)
)

// Extract returns the dates, times, URLs and dollar amounts found in
// subject followed by body, each in order of appearance.
func Extract(subject, body string) model.KeyInfo {
	text := subject + " " + body

	info := model.KeyInfo{
		Dates:   findAll(dateRe, text),
		Times:   findAll(timeRe, text),
		URLs:    findAll(urlRe, text),
		Amounts: findAll(amountRe, text),
	}
	for i, t := range info.Times {
		info.Times[i] = strings.TrimSpace(t)
	}
	for i, u := range info.URLs {
		info.URLs[i] = strings.TrimRight(u, ".,;:!?)]}")
	}
	return info
}

func findAll(re *regexp.Regexp, text string) []string {
	out := re.FindAllString(text, -1)
	if out == nil {
		return []string{}
	}
	return out
}

// Structure describes an email's shape rather than its content.
type Structure struct {
	HasQuestionMarks    bool `json:"has_question_marks"`
	HasExclamationMarks bool `json:"has_exclamation_marks"`
	HasNumbers          bool `json:"has_numbers"`
	HasDates            bool `json:"has_dates"`
	HasTimes            bool `json:"has_times"`
	HasURLs             bool `json:"has_urls"`
	HasEmails           bool `json:"has_emails"`
	WordCount           int  `json:"word_count"`
	SentenceCount       int  `json:"sentence_count"`
	HasAttachments      bool `json:"has_attachments"`
	HasSignature        bool `json:"has_signature"`
}

// StructureOf computes the structural flags of subject + body.
// SentenceCount is the number of '.'-separated segments, so text without a
// period counts as one sentence.
func StructureOf(subject, body string) Structure {
	text := strings.ToLower(subject + " " + body)
	return Structure{
		HasQuestionMarks:    strings.Contains(text, "?"),
		HasExclamationMarks: strings.Contains(text, "!"),
		HasNumbers:          digitRe.MatchString(text),
		HasDates:            anyDateRe.MatchString(text),
		HasTimes:            anyTimeRe.MatchString(text),
		HasURLs:             urlStartRe.MatchString(text),
		HasEmails:           emailRe.MatchString(text),
		WordCount:           len(strings.Fields(text)),
		SentenceCount:       strings.Count(text, ".") + 1,
		HasAttachments:      strings.Contains(text, "attachment") || strings.Contains(text, "attached"),
		HasSignature: strings.Contains(text, "best regards") ||
			strings.Contains(text, "sincerely") ||
			strings.Contains(text, "thanks"),
	}
}
