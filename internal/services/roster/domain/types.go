// Package domain holds the roster read models shared by policy and allocation
package domain

// Gender of a student or mentor
type Gender string

// Gender values
const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
)

// MentorType distinguishes generic mentors from school-restricted ones
type MentorType string

// MentorType values
const (
	MentorGeneric MentorType = "generic"
	MentorSchool  MentorType = "school"
)

// Registration statuses accepted by policy; anything else is rejected
const (
	RegStatusEnrolled = 1
	RegStatusRenewal  = 2
	RegStatusTransfer = 3
)

// Education statuses carried by students
const (
	EducationActive   = 1
	EducationGraduate = 2
)

// Student is a read-mostly reference entity owned by the roster subsystem
type Student struct {
	ID                 string
	Gender             Gender
	EducationStatus    int
	RegistrationCenter int
	RegistrationStatus int
	GroupCode          int
	SchoolCode         *int
}

// IsSchoolType reports whether the student belongs to the school track
func (s *Student) IsSchoolType() bool { return s.SchoolCode != nil }

// IsGraduate reports whether the student has graduated
func (s *Student) IsGraduate() bool { return s.EducationStatus == EducationGraduate }

// Mentor is a read-mostly reference entity owned by the roster subsystem
type Mentor struct {
	ID             int64
	Gender         Gender
	Type           MentorType
	Capacity       int
	CurrentLoad    int
	AllowedGroups  []int
	AllowedCenters []int
	SchoolCodes    []int
	ManagerID      *int64
	Active         bool
}

// HasCapacity reports whether the mentor can take one more student
func (m *Mentor) HasCapacity() bool { return m.Capacity > 0 && m.CurrentLoad < m.Capacity }

// OccupancyRatio is current load over capacity; a zero-capacity mentor is full
func (m *Mentor) OccupancyRatio() float64 {
	if m.Capacity <= 0 {
		return 1.0
	}
	return float64(m.CurrentLoad) / float64(m.Capacity)
}

// AllowsGroup reports membership in the mentor's allowed group codes
func (m *Mentor) AllowsGroup(g int) bool { return containsInt(m.AllowedGroups, g) }

// AllowsCenter reports membership in the mentor's allowed center codes
func (m *Mentor) AllowsCenter(c int) bool { return containsInt(m.AllowedCenters, c) }

// HasSchoolCode reports membership in the mentor's school codes
func (m *Mentor) HasSchoolCode(c int) bool { return containsInt(m.SchoolCodes, c) }

func containsInt(xs []int, v int) bool {
	for _, x := range xs {
		if x == v {
			return true
		}
	}
	return false
}

// Manager owns school-type mentors and scopes them to a set of centers
type Manager struct {
	ID     int64
	Active bool
}
