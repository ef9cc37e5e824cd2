package s3store_test

import (
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
)

// fakeS3 is a path-style S3 endpoint covering the calls the store makes.
type fakeS3 struct {
	mu      sync.Mutex
	bucket  string
	objects map[string][]byte
	uploads map[string]*fakeUpload
	nextID  int

	// denyDelete makes DeleteObjects report these keys as failed.
	denyDelete    map[string]bool
	deleteBatches []int
}

type fakeUpload struct {
	key   string
	parts map[int][]byte
}

func newFakeS3(t *testing.T) (*fakeS3, *httptest.Server) {
	t.Helper()

	f := &fakeS3{
		bucket:     "test",
		objects:    make(map[string][]byte),
		uploads:    make(map[string]*fakeUpload),
		denyDelete: make(map[string]bool),
	}
	server := httptest.NewServer(f)
	t.Cleanup(server.Close)
	return f, server
}

func (f *fakeS3) object(key string) ([]byte, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[key]
	return data, ok
}

func (f *fakeS3) put(key string, data []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[key] = data
}

func (f *fakeS3) uploadCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.uploads)
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	bucket, key, _ := strings.Cut(strings.TrimPrefix(r.URL.Path, "/"), "/")
	if bucket != f.bucket {
		writeS3Error(w, http.StatusNotFound, "NoSuchBucket")
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeS3Error(w, http.StatusBadRequest, "IncompleteBody")
		return
	}

	q := r.URL.Query()
	uploadID := q.Get("uploadId")

	switch {
	case key == "" && r.Method == http.MethodHead:
		w.WriteHeader(http.StatusOK)
	case key == "" && r.Method == http.MethodGet && q.Get("list-type") == "2":
		f.list(w, q.Get("prefix"), q.Get("max-keys"), q.Get("continuation-token"))
	case key == "" && r.Method == http.MethodPost && q.Has("delete"):
		f.deleteObjects(w, body)
	case r.Method == http.MethodPost && q.Has("uploads"):
		f.nextID++
		id := fmt.Sprintf("upload-%d", f.nextID)
		f.uploads[id] = &fakeUpload{key: key, parts: make(map[int][]byte)}
		writeXML(w, struct {
			XMLName  xml.Name `xml:"InitiateMultipartUploadResult"`
			Bucket   string
			Key      string
			UploadID string `xml:"UploadId"`
		}{Bucket: bucket, Key: key, UploadID: id})
	case uploadID != "":
		f.multipart(w, r.Method, key, uploadID, q.Get("partNumber"), body)
	case r.Method == http.MethodPut:
		f.objects[key] = body
		w.Header().Set("ETag", `"object"`)
		w.WriteHeader(http.StatusOK)
	case r.Method == http.MethodGet:
		data, ok := f.objects[key]
		if !ok {
			writeS3Error(w, http.StatusNotFound, "NoSuchKey")
			return
		}
		_, _ = w.Write(data)
	case r.Method == http.MethodDelete:
		delete(f.objects, key)
		w.WriteHeader(http.StatusNoContent)
	default:
		writeS3Error(w, http.StatusMethodNotAllowed, "MethodNotAllowed")
	}
}

func (f *fakeS3) multipart(w http.ResponseWriter, method, key, uploadID, partNumber string, body []byte) {
	upload, ok := f.uploads[uploadID]
	if !ok || upload.key != key {
		writeS3Error(w, http.StatusNotFound, "NoSuchUpload")
		return
	}

	switch method {
	case http.MethodPut:
		n, err := strconv.Atoi(partNumber)
		if err != nil {
			writeS3Error(w, http.StatusBadRequest, "InvalidArgument")
			return
		}
		upload.parts[n] = body
		w.Header().Set("ETag", fmt.Sprintf(`"part-%d"`, n))
		w.WriteHeader(http.StatusOK)

	case http.MethodGet:
		type part struct {
			PartNumber int
			ETag       string
			Size       int
		}
		result := struct {
			XMLName     xml.Name `xml:"ListPartsResult"`
			Bucket      string
			Key         string
			UploadID    string `xml:"UploadId"`
			IsTruncated bool
			Parts       []part `xml:"Part"`
		}{Bucket: f.bucket, Key: key, UploadID: uploadID}
		for _, n := range sortedParts(upload.parts) {
			result.Parts = append(result.Parts, part{PartNumber: n, ETag: fmt.Sprintf(`"part-%d"`, n), Size: len(upload.parts[n])})
		}
		writeXML(w, result)

	case http.MethodPost:
		var data []byte
		for _, n := range sortedParts(upload.parts) {
			data = append(data, upload.parts[n]...)
		}
		f.objects[key] = data
		delete(f.uploads, uploadID)
		writeXML(w, struct {
			XMLName xml.Name `xml:"CompleteMultipartUploadResult"`
			Bucket  string
			Key     string
			ETag    string
		}{Bucket: f.bucket, Key: key, ETag: `"complete"`})

	case http.MethodDelete:
		delete(f.uploads, uploadID)
		w.WriteHeader(http.StatusNoContent)

	default:
		writeS3Error(w, http.StatusMethodNotAllowed, "MethodNotAllowed")
	}
}

func (f *fakeS3) list(w http.ResponseWriter, prefix, maxKeys, token string) {
	limit, err := strconv.Atoi(maxKeys)
	if err != nil || limit <= 0 {
		limit = 1000
	}

	var keys []string
	for k := range f.objects {
		if strings.HasPrefix(k, prefix) && k > token {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	type content struct {
		Key  string
		Size int
	}
	result := struct {
		XMLName               xml.Name `xml:"ListBucketResult"`
		Name                  string
		Prefix                string
		KeyCount              int
		MaxKeys               int
		IsTruncated           bool
		NextContinuationToken string    `xml:",omitempty"`
		Contents              []content `xml:"Contents"`
	}{Name: f.bucket, Prefix: prefix, MaxKeys: limit}

	if len(keys) > limit {
		keys = keys[:limit]
		result.IsTruncated = true
		result.NextContinuationToken = keys[limit-1]
	}
	for _, k := range keys {
		result.Contents = append(result.Contents, content{Key: k, Size: len(f.objects[k])})
	}
	result.KeyCount = len(keys)

	writeXML(w, result)
}

func (f *fakeS3) deleteObjects(w http.ResponseWriter, body []byte) {
	var req struct {
		Objects []struct {
			Key string
		} `xml:"Object"`
	}
	if err := xml.Unmarshal(body, &req); err != nil {
		writeS3Error(w, http.StatusBadRequest, "MalformedXML")
		return
	}
	f.deleteBatches = append(f.deleteBatches, len(req.Objects))

	type failure struct {
		Key     string
		Code    string
		Message string
	}
	result := struct {
		XMLName xml.Name  `xml:"DeleteResult"`
		Errors  []failure `xml:"Error"`
	}{}

	for _, obj := range req.Objects {
		if f.denyDelete[obj.Key] {
			result.Errors = append(result.Errors, failure{Key: obj.Key, Code: "AccessDenied", Message: "Access Denied"})
			continue
		}
		delete(f.objects, obj.Key)
	}

	writeXML(w, result)
}

func sortedParts(parts map[int][]byte) []int {
	numbers := make([]int, 0, len(parts))
	for n := range parts {
		numbers = append(numbers, n)
	}
	sort.Ints(numbers)
	return numbers
}

func writeXML(w http.ResponseWriter, v any) {
	data, err := xml.Marshal(v)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(xml.Header))
	_, _ = w.Write(data)
}

func writeS3Error(w http.ResponseWriter, status int, code string) {
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(status)
	_, _ = fmt.Fprintf(w, `%s<Error><Code>%s</Code><Message>%s</Message></Error>`, xml.Header, code, code)
}

func (f *fakeS3) batches() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int(nil), f.deleteBatches...)
}

func (f *fakeS3) denyDeleteOf(key string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.denyDelete[key] = true
}
