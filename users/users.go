package users

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/jrsteele09/go-vehicle-market/internal/utils"
)

// ID is an identifier the API sends either as a JSON number or a string.
// It is always held in its decimal string form.
type ID string

func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id: %w", err)
	}
	*id = ID(n.String())
	return nil
}

func (id ID) String() string {
	return string(id)
}

// Profile is the raw identity payload returned by GET /me/.
type Profile struct {
	ID        ID     `json:"id"`
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Favorites []ID   `json:"favorites"`
	IsStaff   bool   `json:"is_staff"`
}

type nullValue = struct{}

// Favorites is the set of favourite vehicle ids.
type Favorites map[string]struct{}

func NewFavorites(ids ...string) Favorites {
	f := make(Favorites, len(ids))
	for _, id := range ids {
		f[id] = nullValue{}
	}
	return f
}

func (f Favorites) Has(vehicleID string) bool {
	_, ok := f[vehicleID]
	return ok
}

// Toggle flips the membership of vehicleID and reports whether it is now a favourite.
func (f Favorites) Toggle(vehicleID string) bool {
	if f.Has(vehicleID) {
		delete(f, vehicleID)
		return false
	}
	f[vehicleID] = nullValue{}
	return true
}

// List returns the ids in ascending order.
func (f Favorites) List() []string {
	ids := make([]string, 0, len(f))
	for id := range f {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (f Favorites) Clone() Favorites {
	return NewFavorites(f.List()...)
}

func (f Favorites) MarshalJSON() ([]byte, error) {
	return json.Marshal(f.List())
}

func (f Favorites) MarshalYAML() (interface{}, error) {
	return f.List(), nil
}

// User is the view of the signed-in account cached by the session.
type User struct {
	ID        string    `json:"id" yaml:"id"`
	Name      string    `json:"name" yaml:"name"`
	Email     string    `json:"email" yaml:"email"`
	Favorites Favorites `json:"favorites" yaml:"favorites"`
	IsAdmin   bool      `json:"isAdmin" yaml:"isAdmin"`
}

// FromProfile derives the user from a /me/ payload. The display name is
// "first last" when a first name is set, otherwise the username.
func FromProfile(p Profile) User {
	name := p.Username
	if p.FirstName != "" {
		name = strings.TrimSpace(p.FirstName + " " + p.LastName)
	}
	return User{
		ID:        p.ID.String(),
		Name:      name,
		Email:     p.Email,
		Favorites: NewFavorites(utils.ToStringSlice(p.Favorites)...),
		IsAdmin:   p.IsStaff,
	}
}

// Clone returns a copy whose favourites can be changed independently.
func (u User) Clone() User {
	u.Favorites = u.Favorites.Clone()
	return u
}
