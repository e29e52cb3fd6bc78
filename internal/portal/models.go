package portal

import (
	"encoding/json"
	"strconv"
)

// Course is one entry from the courses portal listing.
type Course struct {
	ID           int64        `json:"id"`
	Name         string       `json:"name"`
	CourseCode   string       `json:"course_code"`
	AcademicYear int64        `json:"academic_year_id"`
	SemesterID   int64        `json:"semester_id"`
	Instructors  []Instructor `json:"instructors"`
}

// Instructor identifies a course teacher.
type Instructor struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Upload is a downloadable attachment of a course activity or homework.
type Upload struct {
	ID          int64  `json:"id"`
	ReferenceID int64  `json:"reference_id"`
	Name        string `json:"name"`
	Size        int64  `json:"size"`
}

// AcademicYear is one entry of the my-academic-years listing.
type AcademicYear struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Sort     int64  `json:"sort"`
	IsActive bool   `json:"is_active"`
}

// Semester is one entry of the my-semesters listing.
type Semester struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Sort int64  `json:"sort"`
}

// Todo is a pending deadline from the courses portal.
type Todo struct {
	ID         int64  `json:"id"`
	CourseID   int64  `json:"course_id"`
	CourseName string `json:"course_name"`
	Title      string `json:"title"`
	Type       string `json:"type"`
	EndTime    string `json:"end_time"`
}

// Subject is one lecture session of a classroom course. SlideImageURLs is
// filled lazily by SlideImageURLs or FillSlideURLs; Path is assigned by the
// download engine when the subject is scheduled.
type Subject struct {
	CourseID       int64    `json:"course_id"`
	CourseName     string   `json:"course_name"`
	SubID          int64    `json:"sub_id"`
	SubName        string   `json:"sub_name"`
	LecturerName   string   `json:"lecturer_name"`
	Path           string   `json:"path"`
	SlideImageURLs []string `json:"ppt_image_urls"`
}

// Score is one row of the academic records query. The registrar returns all
// values as strings, numeric fields included.
type Score struct {
	ClassCode  string `json:"xkkh"`
	CourseName string `json:"kcmc"`
	Grade      string `json:"cj"`
	Credit     string `json:"xf"`
	GradePoint string `json:"jd"`
	Year       string `json:"xkxn"`
	Term       string `json:"xkxq"`
}

// CreditValue parses the credit column, returning 0 for blank rows.
func (s Score) CreditValue() float64 {
	v, err := strconv.ParseFloat(s.Credit, 64)
	if err != nil {
		return 0
	}
	return v
}

// GradePointValue parses the grade point column, returning 0 for blank rows.
func (s Score) GradePointValue() float64 {
	v, err := strconv.ParseFloat(s.GradePoint, 64)
	if err != nil {
		return 0
	}
	return v
}

// TotalCredits sums the credit column over all scores.
func TotalCredits(scores []Score) float64 {
	var total float64
	for _, score := range scores {
		total += score.CreditValue()
	}
	return total
}

// GPA computes the credit-weighted grade point average. A transcript with no
// credits yields 0.
func GPA(scores []Score) float64 {
	var points, credits float64
	for _, score := range scores {
		points += score.GradePointValue() * score.CreditValue()
		credits += score.CreditValue()
	}
	if credits == 0 {
		return 0
	}
	return points / credits
}

// userInfo is the classroom account record used for playback signing and
// course search.
type userInfo struct {
	ID       int64  `json:"id"`
	TenantID int64  `json:"tenant_id"`
	Account  string `json:"account"`
	Phone    string `json:"phone"`
}

// stringID accepts classroom identifiers that arrive as JSON strings.
type stringID int64

func (s *stringID) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		var n int64
		if numErr := json.Unmarshal(data, &n); numErr == nil {
			*s = stringID(n)
			return nil
		}
		return err
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return err
	}
	*s = stringID(n)
	return nil
}
