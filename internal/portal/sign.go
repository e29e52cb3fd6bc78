package portal

import (
	"crypto/md5"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// signPlaybackURL appends the media gateway's access token to a recording
// URL. The token is userID-timestamp-md5(path + userID + tenantID +
// reversed(phone) + timestamp), with the digest in lowercase hex.
func signPlaybackURL(raw, userID, tenantID, phone string, timestamp int64) (string, error) {
	parsed, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	ts := strconv.FormatInt(timestamp, 10)
	digest := md5.Sum([]byte(parsed.Path + userID + tenantID + reverseString(phone) + ts))
	token := fmt.Sprintf("%s-%s-%x", userID, ts, digest)

	separator := "?"
	if strings.Contains(raw, "?") {
		separator = "&"
	}
	return raw + separator + "t=" + token, nil
}

func reverseString(s string) string {
	runes := []rune(s)
	for i, j := 0, len(runes)-1; i < j; i, j = i+1, j-1 {
		runes[i], runes[j] = runes[j], runes[i]
	}
	return string(runes)
}
