package exlog

// Exercise is a single log entry. It has no identity outside its owning user.
type Exercise struct {
	Description string `json:"description"`
	Duration    int    `json:"duration"`
	Date        Date   `json:"date"`
}

// Projection is the response shape of an Exercise, with the date in display form.
type Projection struct {
	Description string `json:"description"`
	Duration    int    `json:"duration"`
	Date        string `json:"date"`
}

func (e Exercise) Project() Projection {
	return Projection{
		Description: e.Description,
		Duration:    e.Duration,
		Date:        e.Date.Display(),
	}
}
