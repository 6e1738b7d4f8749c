package model

import "time"

// TableMap is a named layout document holding every table of a seating area.
type TableMap struct {
	ID           string    `json:"id"`
	RestaurantID string    `json:"restaurantId"`
	Name         string    `json:"name"`
	Layout       Layout    `json:"layout"`
	UpdatedAt    time.Time `json:"updatedAt"`
	Version      int64     `json:"version"`
}

type Layout struct {
	Tables []Table `json:"tables"`
}

// Table is a seating unit. Geometry fields are carried for the floor plan
// and never read by the order logic.
type Table struct {
	ID            string  `json:"id"`
	Number        int     `json:"number"`
	Seats         int     `json:"seats"`
	Shape         string  `json:"shape,omitempty"`
	Width         float64 `json:"width,omitempty"`
	Height        float64 `json:"height,omitempty"`
	X             float64 `json:"x,omitempty"`
	Y             float64 `json:"y,omitempty"`
	Status        string  `json:"status"`
	ActiveOrderID string  `json:"activeOrderId,omitempty"`
}

// FindTable returns the index of the table with the given id, or -1.
func (m *TableMap) FindTable(id string) int {
	for i, t := range m.Layout.Tables {
		if t.ID == id {
			return i
		}
	}
	return -1
}

func (m *TableMap) Clone() *TableMap {
	c := *m
	c.Layout.Tables = append([]Table(nil), m.Layout.Tables...)
	return &c
}

// Notification is what the notification collaborator accepts.
type Notification struct {
	RestaurantID string `json:"restaurantId"`
	Title        string `json:"title"`
	Message      string `json:"message"`
	URL          string `json:"url"`
}
