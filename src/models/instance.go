package models

import "time"

// Instance is a named, API-key protected mock API sandbox
type Instance struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Description    string    `json:"description"`
	APIKey         string    `json:"apiKey"`
	CreatedAt      time.Time `json:"createdAt"`
	LastAccessedAt time.Time `json:"lastAccessedAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
	Items          []Item    `json:"items"`
}

// FindItem returns the index of the item with the given ID, or -1
func (i *Instance) FindItem(itemID string) int {
	for idx := range i.Items {
		if i.Items[idx].ID == itemID {
			return idx
		}
	}
	return -1
}

// Touch stamps the last access time
func (i *Instance) Touch(now time.Time) {
	i.LastAccessedAt = now
}

// ExpiredAt reports whether the instance was created before cutoff
func (i *Instance) ExpiredAt(cutoff time.Time) bool {
	return i.CreatedAt.Before(cutoff)
}
