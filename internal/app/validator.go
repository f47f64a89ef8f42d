package app

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/rs/zerolog/log"

	"reviews_dashboard/internal/adapters/observability"
	"reviews_dashboard/internal/domain"
)

var integerID = regexp.MustCompile(`^-?[0-9]+$`)

// Candidate is a raw record that passed validation. Fields is the
// untouched upstream payload the normalizer probes.
type Candidate struct {
	ID          domain.ReviewID
	SubmittedAt string
	Fields      map[string]any
}

func (c Candidate) validate(numericIDs bool) error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.ID,
			validation.Required.Error("id is required"),
			validation.When(numericIDs, validation.Match(integerID).Error("id must be an integer")),
		),
		validation.Field(&c.SubmittedAt,
			validation.Required.Error("submittedAt is required"),
			validation.Length(10, 0).Error("submittedAt must be at least 10 characters"),
		),
	)
}

// ValidateBatch keeps the records that carry a usable id and timestamp.
// Rejected records are dropped; the batch itself never fails.
func ValidateBatch(p Profile, raws []map[string]any) []Candidate {
	out := make([]Candidate, 0, len(raws))
	for i, raw := range raws {
		if raw == nil {
			continue
		}
		c := Candidate{
			ID:          extractID(raw),
			SubmittedAt: strings.TrimSpace(deref(firstNonEmptyAlias(raw, reviewAliases, "submittedAt"))),
			Fields:      raw,
		}
		if c.ID == "" && !p.NumericIDs {
			c.ID = synthesizeID(p.Provider, raw)
		}
		if err := c.validate(p.NumericIDs); err != nil {
			log.Debug().Str("provider", p.Provider).Int("index", i).Err(err).Msg("dropping invalid record")
			continue
		}
		out = append(out, c)
	}
	dropped := len(raws) - len(out)
	observability.ObserveValidation(p.Provider, len(out), dropped)
	if dropped > 0 {
		log.Info().Str("provider", p.Provider).Int("raw", len(raws)).Int("dropped", dropped).Msg("validation dropped records")
	}
	return out
}

// extractID reads the first id alias as a string. Integral JSON numbers
// are printed without exponent or fraction.
func extractID(m map[string]any) domain.ReviewID {
	for _, path := range reviewAliases["id"] {
		switch v := lookupAny(m, path).(type) {
		case float64:
			return domain.ReviewID(strconv.FormatFloat(v, 'f', -1, 64))
		case int:
			return domain.ReviewID(strconv.Itoa(v))
		case int64:
			return domain.ReviewID(strconv.FormatInt(v, 10))
		case json.Number:
			return domain.ReviewID(v.String())
		case string:
			if s := strings.TrimSpace(v); s != "" {
				return domain.ReviewID(s)
			}
		}
	}
	return ""
}

// synthesizeID derives a stable id from review content so a provider
// without ids still dedups across fetches.
func synthesizeID(provider string, m map[string]any) domain.ReviewID {
	sig := strings.Join([]string{
		deref(firstNonEmptyAlias(m, reviewAliases, "guestName")),
		deref(firstNonEmptyAlias(m, reviewAliases, "listingName")),
		deref(firstNonEmptyAlias(m, reviewAliases, "submittedAt")),
		deref(firstNonEmptyAlias(m, reviewAliases, "publicReview")),
	}, "|")
	if strings.Trim(sig, "|") == "" {
		return ""
	}
	sum := sha1.Sum([]byte(sig))
	return domain.ReviewID(provider + "-" + hex.EncodeToString(sum[:])[:16])
}
