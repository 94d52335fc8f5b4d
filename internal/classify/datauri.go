package classify

import (
	"encoding/base64"
	"errors"
	"strings"
)

// EncodeDataURI builds "data:<mime>;base64,<data>".
func EncodeDataURI(mime string, data []byte) string {
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// DecodeDataURI splits a base64 data URI into its MIME type and bytes.
func DecodeDataURI(uri string) (mime string, data []byte, err error) {
	rest, ok := strings.CutPrefix(uri, "data:")
	if !ok {
		return "", nil, errors.New("not a data URI")
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return "", nil, errors.New("data URI has no payload")
	}
	mime, ok = strings.CutSuffix(meta, ";base64")
	if !ok {
		return "", nil, errors.New("data URI is not base64")
	}
	data, err = base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, err
	}
	return mime, data, nil
}
