package policy

import (
	"context"
	"errors"
	"testing"

	roster "mentormatch/internal/services/roster/domain"
)

type fakeCenters struct {
	sets map[int64]map[int]struct{}
	err  error
}

func (f fakeCenters) AllowedCenters(_ context.Context, managerID int64) (map[int]struct{}, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.sets[managerID], nil
}

func student(mut func(*roster.Student)) *roster.Student {
	s := &roster.Student{
		ID:                 "0012345678",
		Gender:             roster.GenderMale,
		EducationStatus:    roster.EducationActive,
		RegistrationCenter: 0,
		RegistrationStatus: roster.RegStatusEnrolled,
		GroupCode:          10,
	}
	if mut != nil {
		mut(s)
	}
	return s
}

func mentor(mut func(*roster.Mentor)) *roster.Mentor {
	m := &roster.Mentor{
		ID:             1,
		Gender:         roster.GenderMale,
		Type:           roster.MentorGeneric,
		Capacity:       5,
		CurrentLoad:    0,
		AllowedGroups:  []int{10},
		AllowedCenters: []int{0},
		Active:         true,
	}
	if mut != nil {
		mut(m)
	}
	return m
}

func engine() *Engine { return NewEngine(fakeCenters{}) }

func TestEvaluateApproves(t *testing.T) {
	v, err := engine().Evaluate(context.Background(), student(nil), mentor(nil))
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if !v.Approved {
		t.Fatalf("expected approval, got %s", v.Code)
	}
	if v.Code != "" {
		t.Fatalf("approved verdict carries code %q", v.Code)
	}
	// no manager on the mentor, so the full chain ran
	if got := len(v.Trace()); got != 8 {
		t.Fatalf("trace has %d steps, want 8", got)
	}
}

func TestEvaluateShortCircuits(t *testing.T) {
	school := 99
	cases := []struct {
		name      string
		st        *roster.Student
		m         *roster.Mentor
		wantCode  string
		wantSteps int
	}{
		{
			"gender mismatch stops at rule 1",
			student(nil),
			mentor(func(m *roster.Mentor) { m.Gender = roster.GenderFemale }),
			CodeGenderMismatch, 1,
		},
		{
			"group not allowed stops at rule 2",
			student(func(s *roster.Student) { s.GroupCode = 11 }),
			mentor(nil),
			CodeGroupNotAllowed, 2,
		},
		{
			"center not allowed stops at rule 3",
			student(func(s *roster.Student) { s.RegistrationCenter = 4 }),
			mentor(nil),
			CodeCenterNotAllowed, 3,
		},
		{
			"bad registration status stops at rule 4",
			student(func(s *roster.Student) { s.RegistrationStatus = 9 }),
			mentor(nil),
			CodeRegStatusInvalid, 4,
		},
		{
			"full mentor stops at rule 5",
			student(nil),
			mentor(func(m *roster.Mentor) { m.Capacity = 1; m.CurrentLoad = 1 }),
			CodeMentorUnavailable, 5,
		},
		{
			"inactive mentor stops at rule 5",
			student(nil),
			mentor(func(m *roster.Mentor) { m.Active = false }),
			CodeMentorUnavailable, 5,
		},
		{
			"school student on generic mentor stops at rule 6",
			student(func(s *roster.Student) { s.SchoolCode = &school }),
			mentor(nil),
			CodeSchoolTypeMismatch, 6,
		},
		{
			"school mentor without the school code stops at rule 6",
			student(func(s *roster.Student) { s.SchoolCode = &school }),
			mentor(func(m *roster.Mentor) { m.Type = roster.MentorSchool; m.SchoolCodes = []int{1} }),
			CodeSchoolTypeMismatch, 6,
		},
		{
			"graduate on school mentor stops at rule 7",
			student(func(s *roster.Student) {
				s.EducationStatus = roster.EducationGraduate
				s.SchoolCode = &school
			}),
			mentor(func(m *roster.Mentor) { m.Type = roster.MentorSchool; m.SchoolCodes = []int{99} }),
			CodeGraduateSchool, 7,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			v, err := engine().Evaluate(context.Background(), tc.st, tc.m)
			if err != nil {
				t.Fatalf("Evaluate: %v", err)
			}
			if v.Approved {
				t.Fatal("expected rejection")
			}
			if v.Code != tc.wantCode {
				t.Fatalf("code = %s, want %s", v.Code, tc.wantCode)
			}
			if got := len(v.Trace()); got != tc.wantSteps {
				t.Fatalf("trace has %d steps, want exactly %d", got, tc.wantSteps)
			}
			last := v.Trace()[len(v.Trace())-1]
			if last.Passed || last.Code != tc.wantCode {
				t.Fatalf("last trace step = %+v", last)
			}
		})
	}
}

func TestManagerCenterRule(t *testing.T) {
	mgr := int64(5)
	managed := mentor(func(m *roster.Mentor) { m.ManagerID = &mgr })

	t.Run("center inside manager scope passes", func(t *testing.T) {
		e := NewEngine(fakeCenters{sets: map[int64]map[int]struct{}{5: {0: {}}}})
		v, err := e.Evaluate(context.Background(), student(nil), managed)
		if err != nil {
			t.Fatalf("Evaluate: %v", err)
		}
		if !v.Approved {
			t.Fatalf("expected approval, got %s", v.Code)
		}
	})

	t.Run("center outside manager scope denies", func(t *testing.T) {
		e := NewEngine(fakeCenters{sets: map[int64]map[int]struct{}{5: {3: {}}}})
		v, err := e.Evaluate(context.Background(), student(nil), managed)
		if err != nil {
			t.Fatalf("Evaluate: %v", err)
		}
		if v.Approved || v.Code != CodeManagerCenterDenied {
			t.Fatalf("verdict = %+v", v)
		}
		if got := len(v.Trace()); got != 8 {
			t.Fatalf("trace has %d steps, want 8", got)
		}
	})

	t.Run("missing manager denies hard", func(t *testing.T) {
		e := NewEngine(fakeCenters{})
		v, err := e.Evaluate(context.Background(), student(nil), managed)
		if err != nil {
			t.Fatalf("Evaluate: %v", err)
		}
		if v.Approved || v.Code != CodeManagerCenterDenied {
			t.Fatalf("verdict = %+v", v)
		}
	})

	t.Run("lookup failure surfaces as error", func(t *testing.T) {
		e := NewEngine(fakeCenters{err: errors.New("pg down")})
		if _, err := e.Evaluate(context.Background(), student(nil), managed); err == nil {
			t.Fatal("expected infrastructure error")
		}
	})
}
