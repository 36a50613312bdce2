package server

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"time"

	"picdrop/internal/assets"
	"picdrop/internal/audit"
)

// pictureField is the multipart field carrying the upload.
const pictureField = "picture"

// multipartOverhead is the body allowance on top of upload.max_bytes for
// boundaries, part headers and small form fields.
const multipartOverhead = 1 << 20

// uploadedFile describes a stored upload in the response body.
type uploadedFile struct {
	FieldName    string `json:"fieldname"`
	OriginalName string `json:"originalname"`
	MimeType     string `json:"mimetype"`
	Filename     string `json:"filename"`
	Size         int64  `json:"size"`
	URL          string `json:"url"`
}

type uploadResponse struct {
	Message string       `json:"message"`
	File    uploadedFile `json:"file"`
}

// errTooLarge marks a picture over upload.max_bytes.
var errTooLarge = errors.New("file too large")

func (s *Server) handleListImages(w http.ResponseWriter, r *http.Request) {
	rid := RequestIDFromContext(r.Context())

	list, err := s.cfg.Store.List(r.Context())
	if err != nil {
		s.log.Errorf("rid=%s msg=\"list images failed\" err=%v", rid, err)
		writeError(w, http.StatusInternalServerError, "Error fetching images", err)
		return
	}
	if list == nil {
		list = []assets.Asset{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	rid := RequestIDFromContext(r.Context())

	if s.cfg.Upload.MaxBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Upload.MaxBytes+multipartOverhead)
	}

	file, payload, err := s.readPicture(r)
	switch {
	case errors.Is(err, errTooLarge) || isMaxBytes(err):
		s.metrics.RecordUploadRejected()
		writeError(w, http.StatusRequestEntityTooLarge, "File too large", errTooLarge)
		return
	case err != nil:
		s.log.Warningf("rid=%s msg=\"read upload failed\" err=%v", rid, err)
		writeError(w, http.StatusBadRequest, "No file uploaded", err)
		return
	case len(payload) == 0:
		writeMessage(w, http.StatusBadRequest, "No file uploaded")
		return
	}

	if _, err := validateUpload(file.OriginalName, payload, s.cfg.Upload.ImagesOnly); err != nil {
		s.metrics.RecordUploadRejected()
		s.log.Noticef("rid=%s msg=\"upload rejected\" name=%q err=%v", rid, file.OriginalName, err)
		s.record(r, audit.ActionUpload, "", err)
		writeError(w, http.StatusUnsupportedMediaType, "Unsupported file type", err)
		return
	}

	asset, err := s.cfg.Store.Put(r.Context(), payload, file.OriginalName)
	if err != nil {
		if errors.Is(err, assets.ErrNoPayload) {
			writeMessage(w, http.StatusBadRequest, "No file uploaded")
			return
		}
		s.metrics.RecordUploadError()
		s.log.Errorf("rid=%s msg=\"upload failed\" name=%q err=%v", rid, file.OriginalName, err)
		s.record(r, audit.ActionUpload, "", err)
		writeError(w, http.StatusInternalServerError, "Error uploading file", err)
		return
	}

	s.metrics.RecordUpload(asset.Size, time.Since(start))
	s.log.Infof("rid=%s msg=\"file uploaded\" id=%s name=%q size=%d", rid, asset.ID, file.OriginalName, asset.Size)
	s.record(r, audit.ActionUpload, asset.ID, nil)

	file.Filename = asset.ID
	file.Size = asset.Size
	file.URL = asset.URL
	writeJSON(w, http.StatusOK, uploadResponse{Message: "File uploaded successfully", File: file})
}

// readPicture streams the multipart body and returns the first file in the
// picture field. Other parts are drained and ignored. A missing field yields
// an empty payload.
func (s *Server) readPicture(r *http.Request) (uploadedFile, []byte, error) {
	mr, err := r.MultipartReader()
	if err != nil {
		return uploadedFile{}, nil, err
	}

	var (
		file  uploadedFile
		found bool
		buf   bytes.Buffer
	)
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return uploadedFile{}, nil, err
		}

		if found || part.FormName() != pictureField || part.FileName() == "" {
			_, err = io.Copy(io.Discard, part)
			part.Close()
			if err != nil {
				return uploadedFile{}, nil, err
			}
			continue
		}

		found = true
		file = uploadedFile{
			FieldName:    pictureField,
			OriginalName: part.FileName(),
			MimeType:     part.Header.Get("Content-Type"),
		}
		src := io.Reader(part)
		if limit := s.cfg.Upload.MaxBytes; limit > 0 {
			src = io.LimitReader(part, limit+1)
		}
		_, err = buf.ReadFrom(src)
		part.Close()
		if err != nil {
			return uploadedFile{}, nil, err
		}
		if limit := s.cfg.Upload.MaxBytes; limit > 0 && int64(buf.Len()) > limit {
			return uploadedFile{}, nil, errTooLarge
		}
	}
	return file, buf.Bytes(), nil
}

func isMaxBytes(err error) bool {
	var mbe *http.MaxBytesError
	return errors.As(err, &mbe)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	rid := RequestIDFromContext(r.Context())
	id := r.PathValue("id")

	err := s.cfg.Store.Delete(r.Context(), id)
	switch {
	case err == nil:
		s.metrics.RecordDelete(true, nil)
		s.log.Infof("rid=%s msg=\"file deleted\" id=%s", rid, id)
		s.record(r, audit.ActionDelete, id, nil)
		writeMessage(w, http.StatusOK, "File deleted successfully")
	case errors.Is(err, assets.ErrNotFound):
		s.metrics.RecordDelete(false, nil)
		writeMessage(w, http.StatusNotFound, "File not found")
	case errors.Is(err, assets.ErrPathTraversal):
		s.log.Warningf("rid=%s msg=\"rejected delete\" id=%q ip=%s", rid, id, clientIP(r, s.cfg.TrustProxy))
		s.record(r, audit.ActionDelete, "", err)
		writeMessage(w, http.StatusBadRequest, "Invalid file id")
	default:
		s.metrics.RecordDelete(false, err)
		s.log.Errorf("rid=%s msg=\"delete failed\" id=%s err=%v", rid, id, err)
		s.record(r, audit.ActionDelete, id, err)
		writeError(w, http.StatusInternalServerError, "Error deleting file", err)
	}
}

// record writes an audit event for a mutating request. Failures are logged
// and never change the response.
func (s *Server) record(r *http.Request, action audit.Action, assetID string, opErr error) {
	e := audit.Event{
		Action:    action,
		AssetID:   assetID,
		Username:  UserFromContext(r.Context()),
		IPAddress: clientIP(r, s.cfg.TrustProxy),
		UserAgent: r.UserAgent(),
		Success:   opErr == nil,
	}
	if opErr != nil {
		e.ErrorMsg = opErr.Error()
	}
	if err := s.cfg.Audit.Record(r.Context(), e); err != nil {
		s.log.Errorf("rid=%s msg=\"audit record failed\" action=%s err=%v",
			RequestIDFromContext(r.Context()), action, err)
	}
}
