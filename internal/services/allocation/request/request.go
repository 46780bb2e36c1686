// Package request normalizes loosely-typed allocation requests
package request

import (
	"encoding/json"
	"math"
	"strconv"

	"github.com/go-playground/validator/v10"

	"mentormatch/internal/core/canon"
	perr "mentormatch/internal/platform/errors"
	"mentormatch/internal/services/allocation/domain"
)

// Normalizer canonicalizes inbound requests. Pure; safe for concurrent use
type Normalizer struct {
	v *validator.Validate
}

// New constructs a Normalizer with its validator
func New() *Normalizer {
	return &Normalizer{v: validator.New(validator.WithRequiredStructEnabled())}
}

// shape is the validated view of a normalized request
type shape struct {
	StudentID string `validate:"required,max=64"`
	MentorID  int64  `validate:"min=0"`
	RequestID string `validate:"max=128"`
	YearCode  string `validate:"omitempty,len=2,number"`
}

// Normalize produces the canonical AllocationRequest or a Validation/JSON error.
// Two semantically equal raw requests normalize to byte-identical forms
func (n *Normalizer) Normalize(raw domain.RawRequest) (domain.AllocationRequest, error) {
	var req domain.AllocationRequest

	sid, err := coerceStringID(raw.StudentID)
	if err != nil {
		return req, perr.WithField(err, "student_id")
	}
	mid, err := coerceMentorID(raw.MentorID)
	if err != nil {
		return req, perr.WithField(err, "mentor_id")
	}
	payload, err := coercePayload(raw.Payload)
	if err != nil {
		return req, perr.WithField(err, "payload")
	}

	req = domain.AllocationRequest{
		StudentID: sid,
		MentorID:  mid,
		RequestID: canon.CleanID(raw.RequestID),
		Payload:   payload,
		Metadata:  raw.Metadata,
		YearCode:  canon.CleanID(raw.YearCode),
	}

	s := shape{
		StudentID: req.StudentID,
		MentorID:  req.MentorID,
		RequestID: req.RequestID,
		YearCode:  req.YearCode,
	}
	if err := n.v.Struct(s); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok && len(verrs) > 0 {
			f := verrs[0]
			return req, perr.WithField(
				perr.Validationf("invalid %s (%s)", f.Field(), f.Tag()), f.Field())
		}
		return req, perr.Wrap(err, perr.ErrorCodeValidation, "request validation")
	}
	return req, nil
}

// coerceStringID folds ids arriving as string, bytes, or number into the
// canonical digit-folded form
func coerceStringID(v any) (string, error) {
	switch t := v.(type) {
	case nil:
		return "", nil
	case string:
		return canon.CleanID(t), nil
	case []byte:
		return canon.CleanID(string(t)), nil
	case json.Number:
		return canon.CleanID(t.String()), nil
	case int:
		return strconv.Itoa(t), nil
	case int64:
		return strconv.FormatInt(t, 10), nil
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) || t != math.Trunc(t) || t < 0 {
			return "", perr.Validationf("id must be a non-negative integer, got %v", t)
		}
		return strconv.FormatInt(int64(t), 10), nil
	default:
		return "", perr.Validationf("unsupported id type %T", v)
	}
}

// coerceMentorID accepts digit strings and integer numerics; 0 means
// "any eligible mentor"
func coerceMentorID(v any) (int64, error) {
	switch t := v.(type) {
	case nil:
		return 0, nil
	case int:
		return checkMentorID(int64(t))
	case int64:
		return checkMentorID(t)
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) || t != math.Trunc(t) {
			return 0, perr.Validationf("mentor id must be an integer, got %v", t)
		}
		return checkMentorID(int64(t))
	case json.Number:
		id, err := t.Int64()
		if err != nil {
			return 0, perr.Validationf("mentor id must be an integer, got %q", t.String())
		}
		return checkMentorID(id)
	case string:
		s := canon.CleanID(t)
		if s == "" {
			return 0, nil
		}
		if !canon.DigitsOnly(s) {
			return 0, perr.Validationf("mentor id must be numeric, got %q", t)
		}
		id, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return 0, perr.Validationf("mentor id out of range: %q", s)
		}
		return checkMentorID(id)
	default:
		return 0, perr.Validationf("unsupported mentor id type %T", v)
	}
}

func checkMentorID(id int64) (int64, error) {
	if id < 0 {
		return 0, perr.Validationf("mentor id must be >= 0, got %d", id)
	}
	return id, nil
}

// coercePayload accepts a ready map or JSON text that must parse as an object
func coercePayload(v any) (map[string]any, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case map[string]any:
		return t, nil
	case string:
		if t == "" {
			return nil, nil
		}
		m, err := canon.ParseObject(t)
		if err != nil {
			return nil, perr.Wrap(err, perr.ErrorCodeJSON, "payload must be a JSON object")
		}
		return m, nil
	case []byte:
		if len(t) == 0 {
			return nil, nil
		}
		m, err := canon.ParseObject(string(t))
		if err != nil {
			return nil, perr.Wrap(err, perr.ErrorCodeJSON, "payload must be a JSON object")
		}
		return m, nil
	default:
		return nil, perr.JSONErrf("unsupported payload type %T", v)
	}
}
