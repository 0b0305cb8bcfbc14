package enrol

// Tally counts outcomes of one run.
type Tally struct {
	Warnings int `json:"warnings"`
	Errors   int `json:"errors"`

	CoursesCreated int `json:"courses_created"`
	CoursesUpdated int `json:"courses_updated"`
	CoursesHidden  int `json:"courses_hidden"`
	UsersCreated   int `json:"users_created"`
	UsersUpdated   int `json:"users_updated"`
	UsersLinked    int `json:"users_linked"`
	UsersDeleted   int `json:"users_deleted"`
	Enrolled       int `json:"enrolled"`
	Unenrolled     int `json:"unenrolled"`
	Retracted      int `json:"retracted"`
}

// Warn counts a warning.
func (t *Tally) Warn() { t.Warnings++ }

// Error counts an error.
func (t *Tally) Error() { t.Errors++ }
