package gate

import (
	"net/http"
	"time"

	"github.com/pefman/break-the-wall/internal/wall"
)

// CookieMaxAge keeps the marker around well past the day it guards.
const CookieMaxAge = 30 * 24 * time.Hour

// Cookie is the browser-scoped marker for one request: it reads the
// lastClickDate cookie the visitor sent and writes the new value back on the
// response.
type Cookie struct {
	w      http.ResponseWriter
	date   string
	secure bool
}

var _ wall.Gate = (*Cookie)(nil)

func NewCookie(w http.ResponseWriter, r *http.Request, secure bool) *Cookie {
	c := &Cookie{w: w, secure: secure}
	if ck, err := r.Cookie(Key); err == nil {
		c.date = valid(ck.Value)
	}
	return c
}

func (c *Cookie) LastClickDate() (string, error) {
	return c.date, nil
}

func (c *Cookie) SetLastClickDate(date string) error {
	c.date = date
	http.SetCookie(c.w, &http.Cookie{
		Name:     Key,
		Value:    date,
		Path:     "/",
		MaxAge:   int(CookieMaxAge / time.Second),
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}
