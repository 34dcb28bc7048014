package login

import (
	"context"
	"errors"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"time"
)

// The protocol's login endpoint answers the scan poll with a javascript
// snippet embedding the scanning user's avatar:
//
//	window.code=201;window.userAvatar = 'data:img/jpg;base64,<...>';
var avatarRe = regexp.MustCompile(`base64,(.*?)'`)

var errNoAvatar = errors.New("login: no avatar in response")

// AvatarFetcher pulls the scanning user's avatar out-of-band during the
// SCANNED state. Failures are non-fatal to the login.
type AvatarFetcher struct {
	url string
	hc  *http.Client
	now func() time.Time
}

func NewAvatarFetcher(url string) *AvatarFetcher {
	return &AvatarFetcher{
		url: url,
		hc:  &http.Client{Timeout: 5 * time.Second},
		now: time.Now,
	}
}

// Fetch returns the base64 avatar payload for the session uuid.
func (f *AvatarFetcher) Fetch(ctx context.Context, uuid string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return "", err
	}
	q := req.URL.Query()
	q.Set("loginicon", "true") // endpoint omits the avatar without this
	q.Set("uuid", uuid)
	q.Set("tip", "1")
	q.Set("_", strconv.FormatInt(f.now().Unix(), 10))
	req.URL.RawQuery = q.Encode()

	resp, err := f.hc.Do(req)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", err
	}
	m := avatarRe.FindSubmatch(body)
	if m == nil {
		return "", errNoAvatar
	}
	return string(m[1]), nil
}
