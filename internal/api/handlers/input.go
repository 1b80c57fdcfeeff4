package handlers

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/matiasleandrokruk/cropdoctor/internal/domain/diagnosis"
)

// bodyOverhead covers JSON or multipart framing around the image bytes.
const bodyOverhead = 64 << 10

type diagnosisRequest struct {
	Mode     string `json:"mode"`
	Text     string `json:"text"`
	Image    string `json:"image"`
	MIMEType string `json:"mimeType"`
}

// maxBodyBytes bounds the request body. Base64 inflates the image by 4/3.
func maxBodyBytes(limits diagnosis.Limits) int64 {
	return limits.MaxImageBytes*4/3 + int64(limits.MaxTextRunes)*4 + bodyOverhead
}

// decodeInput reads a diagnosis request from a JSON or multipart body. It
// only checks the request shape; ValidateInput does the rest.
func decodeInput(w http.ResponseWriter, r *http.Request, limits diagnosis.Limits) (diagnosis.Input, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes(limits))

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get(headerContentType))
	switch mediaType {
	case "multipart/form-data":
		return decodeForm(r, limits, true)
	case "application/x-www-form-urlencoded":
		return decodeForm(r, limits, false)
	default:
		return decodeJSON(r)
	}
}

func decodeJSON(r *http.Request) (diagnosis.Input, error) {
	var req diagnosisRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return diagnosis.Input{}, bodyError(err)
	}

	in := diagnosis.Input{Mode: inferMode(req.Mode, req.Image != ""), Text: req.Text, MIMEType: req.MIMEType}
	if in.Mode != diagnosis.ModeImage || req.Image == "" {
		return in, nil
	}

	data, mimeType, err := decodeImageField(req.Image)
	if err != nil {
		return diagnosis.Input{}, err
	}
	in.Image = data
	if in.MIMEType == "" {
		in.MIMEType = mimeType
	}
	return in, nil
}

// decodeForm reads the browser form. Only multipart bodies can carry the
// image file.
func decodeForm(r *http.Request, limits diagnosis.Limits, isMultipart bool) (diagnosis.Input, error) {
	var (
		file   multipart.File
		header *multipart.FileHeader
		err    error
	)
	if isMultipart {
		err = r.ParseMultipartForm(limits.MaxImageBytes + bodyOverhead)
	} else {
		err = r.ParseForm()
	}
	if err != nil {
		return diagnosis.Input{}, bodyError(err)
	}

	hasFile := false
	if isMultipart {
		file, header, err = r.FormFile("image")
		hasFile = err == nil
		if err != nil && !errors.Is(err, http.ErrMissingFile) {
			return diagnosis.Input{}, bodyError(err)
		}
	}

	in := diagnosis.Input{
		Mode:     inferMode(r.FormValue("mode"), hasFile),
		Text:     r.FormValue("text"),
		MIMEType: r.FormValue("mimeType"),
	}
	if !hasFile {
		return in, nil
	}
	defer file.Close()

	// Read one byte past the limit so ValidateInput reports the size error.
	data, err := io.ReadAll(io.LimitReader(file, limits.MaxImageBytes+1))
	if err != nil {
		return diagnosis.Input{}, bodyError(err)
	}
	if in.Mode == diagnosis.ModeImage {
		in.Image = data
		if in.MIMEType == "" {
			in.MIMEType = header.Header.Get(headerContentType)
		}
	}
	return in, nil
}

// inferMode uses the explicit mode when given, otherwise image when an image
// is present.
func inferMode(mode string, hasImage bool) diagnosis.InputMode {
	mode = strings.ToLower(strings.TrimSpace(mode))
	switch {
	case mode != "":
		return diagnosis.InputMode(mode)
	case hasImage:
		return diagnosis.ModeImage
	default:
		return diagnosis.ModeText
	}
}

// decodeImageField accepts raw base64 or a data URL
// ("data:image/png;base64,...") and returns the bytes and any MIME type
// the data URL carried.
func decodeImageField(field string) ([]byte, string, error) {
	var mimeType string
	if rest, ok := strings.CutPrefix(field, "data:"); ok {
		meta, payload, found := strings.Cut(rest, ",")
		if !found || !strings.HasSuffix(meta, ";base64") {
			return nil, "", requestError{status: http.StatusBadRequest, key: msgBadRequest}
		}
		mimeType = strings.TrimSuffix(meta, ";base64")
		field = payload
	}
	data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(field))
	if err != nil {
		return nil, "", requestError{status: http.StatusBadRequest, key: msgBadRequest}
	}
	return data, mimeType, nil
}

// bodyError maps body read failures: an oversized body is a size error,
// anything else is a malformed request.
func bodyError(err error) error {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return requestError{status: http.StatusRequestEntityTooLarge, key: diagnosis.MsgErrorSize}
	}
	return requestError{status: http.StatusBadRequest, key: msgBadRequest}
}
