package policy

import (
	"context"
	"fmt"

	roster "mentormatch/internal/services/roster/domain"
)

// genderRule requires student and mentor gender to match
type genderRule struct{}

func (genderRule) Code() string { return CodeGenderMismatch }

func (genderRule) Allow(_ context.Context, in Input) (bool, string, error) {
	if in.Student.Gender != in.Mentor.Gender {
		return false, fmt.Sprintf("student %s, mentor %s", in.Student.Gender, in.Mentor.Gender), nil
	}
	return true, "", nil
}

// groupRule requires the student's group code in the mentor's allowed groups
type groupRule struct{}

func (groupRule) Code() string { return CodeGroupNotAllowed }

func (groupRule) Allow(_ context.Context, in Input) (bool, string, error) {
	if !in.Mentor.AllowsGroup(in.Student.GroupCode) {
		return false, fmt.Sprintf("group %d not in mentor's allowed groups", in.Student.GroupCode), nil
	}
	return true, "", nil
}

// centerRule requires the student's registration center in the mentor's
// allowed centers
type centerRule struct{}

func (centerRule) Code() string { return CodeCenterNotAllowed }

func (centerRule) Allow(_ context.Context, in Input) (bool, string, error) {
	if !in.Mentor.AllowsCenter(in.Student.RegistrationCenter) {
		return false, fmt.Sprintf("center %d not in mentor's allowed centers", in.Student.RegistrationCenter), nil
	}
	return true, "", nil
}

// regStatusRule accepts only the three valid registration statuses
type regStatusRule struct{}

func (regStatusRule) Code() string { return CodeRegStatusInvalid }

func (regStatusRule) Allow(_ context.Context, in Input) (bool, string, error) {
	switch in.Student.RegistrationStatus {
	case roster.RegStatusEnrolled, roster.RegStatusRenewal, roster.RegStatusTransfer:
		return true, "", nil
	}
	return false, fmt.Sprintf("registration status %d", in.Student.RegistrationStatus), nil
}

// availabilityRule requires an active mentor with free capacity
type availabilityRule struct{}

func (availabilityRule) Code() string { return CodeMentorUnavailable }

func (availabilityRule) Allow(_ context.Context, in Input) (bool, string, error) {
	if !in.Mentor.Active {
		return false, "mentor inactive", nil
	}
	if !in.Mentor.HasCapacity() {
		return false, fmt.Sprintf("load %d of %d", in.Mentor.CurrentLoad, in.Mentor.Capacity), nil
	}
	return true, "", nil
}

// schoolTypeRule: school-track students need a school mentor carrying their
// exact school code; everyone else must avoid school mentors
type schoolTypeRule struct{}

func (schoolTypeRule) Code() string { return CodeSchoolTypeMismatch }

func (schoolTypeRule) Allow(_ context.Context, in Input) (bool, string, error) {
	if in.Student.IsSchoolType() {
		if in.Mentor.Type != roster.MentorSchool {
			return false, "school student needs a school mentor", nil
		}
		if !in.Mentor.HasSchoolCode(*in.Student.SchoolCode) {
			return false, fmt.Sprintf("mentor does not carry school %d", *in.Student.SchoolCode), nil
		}
		return true, "", nil
	}
	if in.Mentor.Type == roster.MentorSchool {
		return false, "non-school student on a school mentor", nil
	}
	return true, "", nil
}

// graduateRule keeps graduates off school mentors
type graduateRule struct{}

func (graduateRule) Code() string { return CodeGraduateSchool }

func (graduateRule) Allow(_ context.Context, in Input) (bool, string, error) {
	if in.Student.IsGraduate() && in.Mentor.Type == roster.MentorSchool {
		return false, "graduate on a school mentor", nil
	}
	return true, "", nil
}

// managerCenterRule scopes managed mentors to their manager's center set.
// A missing or inactive manager is a hard denial, not an open policy
type managerCenterRule struct {
	centers roster.CenterLookup
}

func (managerCenterRule) Code() string { return CodeManagerCenterDenied }

func (r managerCenterRule) Allow(ctx context.Context, in Input) (bool, string, error) {
	if in.Mentor.ManagerID == nil {
		return true, "", nil
	}
	set, err := r.centers.AllowedCenters(ctx, *in.Mentor.ManagerID)
	if err != nil {
		return false, "", err
	}
	if set == nil {
		return false, fmt.Sprintf("manager %d missing or inactive", *in.Mentor.ManagerID), nil
	}
	if _, ok := set[in.Student.RegistrationCenter]; !ok {
		return false, fmt.Sprintf("center %d outside manager %d's scope",
			in.Student.RegistrationCenter, *in.Mentor.ManagerID), nil
	}
	return true, "", nil
}
