package webbridge

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"fmt"
	"net/http"
	"os"
	"time"
)

var turnSecret = os.Getenv("TURN_PASS")

const turnCredentialTTL = int64(3600)

// GenerateTURNCredentials produces a time-limited username/password pair
// using the coturn static-auth-secret REST API convention
// ("expires:user" HMAC-SHA1'd with the shared secret), kept verbatim from
// the teacher's root main.go.
func GenerateTURNCredentials(secret, user string, ttlSeconds int64) (string, string) {
	expires := time.Now().Unix() + ttlSeconds
	username := fmt.Sprintf("%d:%s", expires, user)

	mac := hmac.New(sha1.New, []byte(secret))
	mac.Write([]byte(username))
	password := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	return username, password
}

// ServeTURNCredentials issues fresh TURN credentials for the requesting
// operator session, scoped to the session's client id; a session without a
// client id gets the teacher's "anonymous" user.
func ServeTURNCredentials(sess *Session) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := sess.ClientID
		if user == "" {
			user = "anonymous"
		}
		username, password := GenerateTURNCredentials(turnSecret, user, turnCredentialTTL)

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"username":%q,"password":%q}`, username, password)
	}
}
