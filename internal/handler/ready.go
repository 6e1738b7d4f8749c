package handler

import (
	"net/http"

	"github.com/sirupsen/logrus"
)

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping() error
}

// ReadyCheck names one dependency /ready asks about.
type ReadyCheck struct {
	Name   string
	Pinger Pinger
}

// Ready answers 200 when every check passes and 503 with the failing
// checks otherwise.
func Ready(checks []ReadyCheck, log logrus.FieldLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		failed := map[string]string{}
		for _, c := range checks {
			if err := c.Pinger.Ping(); err != nil {
				log.WithError(err).WithField("check", c.Name).Warn("readiness check failed")
				failed[c.Name] = err.Error()
			}
		}
		if len(failed) > 0 {
			writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{"status": "unavailable", "failed": failed})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}
