package echoapi

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tarpaulin/backend/core"
	"github.com/tarpaulin/backend/core/assignment"
	"github.com/tarpaulin/backend/core/authz"
	"github.com/tarpaulin/backend/core/course"
	"github.com/tarpaulin/backend/core/user"
	emailsvc "github.com/tarpaulin/backend/services/email"
	inmemdb "github.com/tarpaulin/backend/storage/database/inmem"
)

var errMissingToken = httpErr{Error: "missing or malformed jwt"}

type testEnv struct {
	conf    *core.Config
	usrSvc  user.Service
	crsSvc  course.Service
	asgSvc  assignment.Service
	asgRepo assignment.Repository
}

func setup(t *testing.T, confMutators ...func(*core.Config)) (Server, *testEnv) {
	t.Helper()

	conf := core.NewConfig()
	conf.TestMode = true
	conf.Debug = false
	conf.Server.RateLimitMaxRequests = 1000 // out of the way
	for _, mutate := range confMutators {
		mutate(conf)
	}

	db := inmemdb.NewDB()
	mailSvc := emailsvc.NewConsoleServiceMock(conf)
	usrSvc := user.NewServiceMock(inmemdb.NewUserRepository(db), mailSvc, conf)
	asgRepo := inmemdb.NewAssignmentRepository(db)
	asgSvc := assignment.NewService(asgRepo, inmemdb.NewBlobStore())
	crsSvc := course.NewService(inmemdb.NewCourseRepository(db), usrSvc, asgSvc)
	engine := authz.NewEngine(crsSvc)

	translator, _ := ut.New(en.New()).GetTranslator("en")
	validate := validator.New()
	core.InitValidators(validate, translator)
	user.RegisterValidators(validate, translator)

	std := testLogger{t}
	srv := NewServer(&Options{
		DisableReqLogs: true,
		UserSvc:        usrSvc,
		CourseSvc:      crsSvc,
		AssignmentSvc:  asgSvc,
		Engine:         engine,
		Logger:         std,
		Conf:           conf,
		Validate:       validate,
		Translator:     translator,
	})

	env := &testEnv{
		conf:    conf,
		usrSvc:  usrSvc,
		crsSvc:  crsSvc,
		asgSvc:  asgSvc,
		asgRepo: asgRepo,
	}
	return srv, env
}

// testLogger funnels server errors into the test log.
type testLogger struct {
	t *testing.T
}

func (l testLogger) Enable(bool)                           {}
func (l testLogger) Debug(msg string, args ...interface{}) { l.t.Logf("DEBUG: %s %v", msg, args) }
func (l testLogger) Info(msg string, args ...interface{})  { l.t.Logf("INFO: %s %v", msg, args) }
func (l testLogger) Warn(msg string, args ...interface{})  { l.t.Logf("WARN: %s %v", msg, args) }
func (l testLogger) Error(msg string, args ...interface{}) { l.t.Logf("ERROR: %s %v", msg, args) }
func (l testLogger) Fatal(msg string, args ...interface{}) { l.t.Fatalf("FATAL: %s %v", msg, args) }

var _ core.Logger = (*testLogger)(nil)

// fixtures

func (env *testEnv) createUser(t *testing.T, name, email, role string) user.User {
	t.Helper()
	usr, err := env.usrSvc.Create(context.Background(), user.NewUser{
		Name:     name,
		Email:    email,
		Password: "Str0ngPa$$",
		Role:     role,
	})
	require.NoError(t, err)
	return usr
}

func (env *testEnv) createCourse(t *testing.T, instructorID string) course.Course {
	t.Helper()
	crs, err := env.crsSvc.Create(context.Background(), course.NewCourse{
		Subject:      "CS",
		Number:       "493",
		Title:        "Cloud Application Development",
		Term:         "sp26",
		InstructorID: instructorID,
	})
	require.NoError(t, err)
	return crs
}

func (env *testEnv) enroll(t *testing.T, courseID string, studentIDs ...string) {
	t.Helper()
	res, err := env.crsSvc.UpdateEnrollment(context.Background(), courseID, course.EnrollmentUpdate{Add: studentIDs})
	require.NoError(t, err)
	require.Empty(t, res.Failed)
}

// request plumbing for table tests

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	return newAuthRequest(method, path, "", data...)
}

func newUploadRequest(t *testing.T, path, token, filename, contentType string, content []byte) (*http.Request, *httptest.ResponseRecorder) {
	t.Helper()

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	header := make(map[string][]string)
	header["Content-Disposition"] = []string{`form-data; name="file"; filename="` + filename + `"`}
	header["Content-Type"] = []string{contentType}
	part, err := w.CreatePart(header)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func getToken(t *testing.T, conf *core.Config, usr user.User) string {
	t.Helper()
	token, err := GenerateToken(conf, GetUserClaims(conf, usr))
	if err != nil {
		t.Fatalf("getToken() failed: %v", err)
	}
	return token
}

func marshallObj(t *testing.T, obj interface{}) []byte {
	t.Helper()
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marshallObj() failed: %v", err)
	}
	return data
}

func jsonBytesEqual(t *testing.T, b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	if reflect.DeepEqual(j1, j2) {
		return true, nil
	}
	if j1 == nil || j2 == nil {
		return false, nil
	}
	return assert.ElementsMatch(t, j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	t.Helper()
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v; body %s", rec.Code, tt.wantCode, rec.Body.String())
	}
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(t, rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}
