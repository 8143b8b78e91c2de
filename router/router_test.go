package router_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sahilchouksey/edu-materials-api/api"
	"github.com/sahilchouksey/edu-materials-api/database"
	"github.com/sahilchouksey/edu-materials-api/model"
	"github.com/sahilchouksey/edu-materials-api/router"
	"github.com/sahilchouksey/edu-materials-api/services"
	"github.com/sahilchouksey/edu-materials-api/services/notify"
	"github.com/sahilchouksey/edu-materials-api/utils/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type testEnv struct {
	app *fiber.App
	db  *gorm.DB
}

type apiResponse struct {
	Success    bool                   `json:"success"`
	Message    string                 `json:"message"`
	Data       json.RawMessage        `json:"data"`
	Error      map[string]interface{} `json:"error"`
	Pagination struct {
		Total int64 `json:"total"`
	} `json:"pagination"`
}

func setupApp(t *testing.T, overrides ...func(*router.Deps)) *testEnv {
	auth.Cost = bcrypt.MinCost
	t.Cleanup(func() { auth.Cost = auth.DefaultCost })

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, database.Migrate(db))

	log := zap.NewNop()
	require.NoError(t, database.NewSeeder(db, log).SeedAll())

	jwtManager := auth.NewJWTManager(auth.JWTConfig{
		Secret:        "test-secret",
		Expiry:        time.Hour,
		RefreshExpiry: 24 * time.Hour,
		Issuer:        "edu-materials-test",
	})

	// not started: events stay pending
	dispatcher := notify.NewDispatcher(db, nil, services.NewSubscriptionService(db), log, notify.Config{})

	deps := router.Deps{
		DB:         db,
		Log:        log,
		JWT:        jwtManager,
		Health:     database.NewGORMStore(db, log),
		Dispatcher: dispatcher,
	}
	for _, override := range overrides {
		override(&deps)
	}

	app := api.NewApp(log)
	router.SetupRoutes(app, deps)

	return &testEnv{app: app, db: db}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body interface{}) (int, apiResponse) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out apiResponse
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	}
	return resp.StatusCode, out
}

func (e *testEnv) login(t *testing.T, email, password string) string {
	t.Helper()

	status, res := e.do(t, http.MethodPost, "/api/v1/users/token/", "", fiber.Map{"email": email, "password": password})
	require.Equal(t, http.StatusOK, status)

	var pair auth.TokenPair
	require.NoError(t, json.Unmarshal(res.Data, &pair))
	require.NotEmpty(t, pair.Access)
	return pair.Access
}

func (e *testEnv) courseID(t *testing.T, title string) uint {
	var course model.Course
	require.NoError(t, e.db.Where("title = ?", title).First(&course).Error)
	return course.ID
}

func fieldErrors(res apiResponse) map[string]interface{} {
	fields, _ := res.Error["fields"].(map[string]interface{})
	return fields
}

const (
	userCourse  = "Introduction to Go"
	adminCourse = "Building HTTP APIs"
)

func TestPing(t *testing.T) {
	env := setupApp(t)

	status, _ := env.do(t, http.MethodGet, "/ping", "", nil)
	assert.Equal(t, http.StatusOK, status)
}

func TestRegister(t *testing.T) {
	env := setupApp(t)

	body := fiber.Map{"email": "NewTest@Example.com", "password": "newtest123", "password2": "newtest123"}
	status, res := env.do(t, http.MethodPost, "/api/v1/users/register/", "", body)
	require.Equal(t, http.StatusCreated, status)

	var user map[string]interface{}
	require.NoError(t, json.Unmarshal(res.Data, &user))
	assert.Equal(t, "newtest@example.com", user["email"])
	assert.Nil(t, user["password"])
	assert.Contains(t, user["groups"], model.GroupStudents)

	status, _ = env.do(t, http.MethodPost, "/api/v1/users/register/", "", body)
	assert.Equal(t, http.StatusConflict, status)

	env.login(t, "newtest@example.com", "newtest123")
}

func TestRegisterValidation(t *testing.T) {
	env := setupApp(t)

	status, res := env.do(t, http.MethodPost, "/api/v1/users/register/", "",
		fiber.Map{"email": "a@example.com", "password": "newtest123", "password2": "other12345"})
	require.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Password fields didn't match.", fieldErrors(res)["password"])

	status, res = env.do(t, http.MethodPost, "/api/v1/users/register/", "",
		fiber.Map{"email": "a@example.com", "password": "12345678", "password2": "12345678"})
	require.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, fieldErrors(res)["password"], "entirely numeric")

	status, res = env.do(t, http.MethodPost, "/api/v1/users/register/", "",
		fiber.Map{"email": "not-an-email", "password": "newtest123", "password2": "newtest123"})
	require.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, fieldErrors(res), "email")
}

func TestTokenAndProfile(t *testing.T) {
	env := setupApp(t)

	status, _ := env.do(t, http.MethodPost, "/api/v1/users/token/", "", fiber.Map{"email": "user@example.com", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, status)

	token := env.login(t, "user@example.com", "user123")

	status, res := env.do(t, http.MethodGet, "/api/v1/users/profile/", token, nil)
	require.Equal(t, http.StatusOK, status)
	var profile map[string]interface{}
	require.NoError(t, json.Unmarshal(res.Data, &profile))
	assert.Equal(t, "user@example.com", profile["email"])

	status, res = env.do(t, http.MethodPatch, "/api/v1/users/profile/", token, fiber.Map{"city": "Lisbon"})
	require.Equal(t, http.StatusOK, status)
	require.NoError(t, json.Unmarshal(res.Data, &profile))
	assert.Equal(t, "Lisbon", profile["city"])

	status, _ = env.do(t, http.MethodGet, "/api/v1/users/profile/", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestRefreshAndLogout(t *testing.T) {
	env := setupApp(t)

	status, res := env.do(t, http.MethodPost, "/api/v1/users/token/", "", fiber.Map{"email": "user@example.com", "password": "user123"})
	require.Equal(t, http.StatusOK, status)
	var pair auth.TokenPair
	require.NoError(t, json.Unmarshal(res.Data, &pair))

	status, res = env.do(t, http.MethodPost, "/api/v1/users/token/refresh/", "", fiber.Map{"refresh": pair.Refresh})
	require.Equal(t, http.StatusOK, status)
	var rotated auth.TokenPair
	require.NoError(t, json.Unmarshal(res.Data, &rotated))
	assert.NotEmpty(t, rotated.Access)

	// the old refresh token is blacklisted
	status, _ = env.do(t, http.MethodPost, "/api/v1/users/token/refresh/", "", fiber.Map{"refresh": pair.Refresh})
	assert.Equal(t, http.StatusUnauthorized, status)

	status, _ = env.do(t, http.MethodPost, "/api/v1/users/logout/", rotated.Access, nil)
	require.Equal(t, http.StatusOK, status)

	status, _ = env.do(t, http.MethodGet, "/api/v1/users/profile/", rotated.Access, nil)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestUserDirectoryScoping(t *testing.T) {
	env := setupApp(t)
	userToken := env.login(t, "user@example.com", "user123")
	adminToken := env.login(t, "admin@example.com", "admin123")

	status, res := env.do(t, http.MethodGet, "/api/v1/users/", userToken, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, int64(1), res.Pagination.Total)

	status, res = env.do(t, http.MethodGet, "/api/v1/users/", adminToken, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, int64(3), res.Pagination.Total)

	var admin model.User
	require.NoError(t, env.db.Where("email = ?", "admin@example.com").First(&admin).Error)

	status, _ = env.do(t, http.MethodGet, fmt.Sprintf("/api/v1/users/%d/", admin.ID), userToken, nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = env.do(t, http.MethodGet, "/api/v1/users/9999/", adminToken, nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestCourseListScoping(t *testing.T) {
	env := setupApp(t)

	cases := []struct {
		email, password string
		total           int64
	}{
		{"user@example.com", "user123", 1},
		{"moderator@example.com", "moderator123", 2},
		{"admin@example.com", "admin123", 2},
	}
	for _, tc := range cases {
		token := env.login(t, tc.email, tc.password)
		status, res := env.do(t, http.MethodGet, "/api/v1/materials/courses/", token, nil)
		require.Equal(t, http.StatusOK, status, tc.email)
		assert.Equal(t, tc.total, res.Pagination.Total, tc.email)
	}

	status, _ := env.do(t, http.MethodGet, "/api/v1/materials/courses/", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestCourseDetail(t *testing.T) {
	env := setupApp(t)
	token := env.login(t, "user@example.com", "user123")

	status, res := env.do(t, http.MethodGet, fmt.Sprintf("/api/v1/materials/courses/%d/", env.courseID(t, userCourse)), token, nil)
	require.Equal(t, http.StatusOK, status)

	var course map[string]interface{}
	require.NoError(t, json.Unmarshal(res.Data, &course))
	assert.Equal(t, "introduction-to-go", course["slug"])
	assert.Equal(t, float64(2), course["lessons_count"])
	assert.Equal(t, true, course["is_subscribed"])
	assert.Len(t, course["lessons"], 2)

	// another owner's course is invisible
	status, _ = env.do(t, http.MethodGet, fmt.Sprintf("/api/v1/materials/courses/%d/", env.courseID(t, adminCourse)), token, nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestCourseCreatePolicy(t *testing.T) {
	env := setupApp(t)

	modToken := env.login(t, "moderator@example.com", "moderator123")
	status, _ := env.do(t, http.MethodPost, "/api/v1/materials/courses/", modToken, fiber.Map{"title": "Moderated"})
	assert.Equal(t, http.StatusForbidden, status)

	var count int64
	require.NoError(t, env.db.Model(&model.Course{}).Where("title = ?", "Moderated").Count(&count).Error)
	assert.Zero(t, count)

	userToken := env.login(t, "user@example.com", "user123")
	status, res := env.do(t, http.MethodPost, "/api/v1/materials/courses/", userToken, fiber.Map{"title": "Concurrency in Practice"})
	require.Equal(t, http.StatusCreated, status)

	var course map[string]interface{}
	require.NoError(t, json.Unmarshal(res.Data, &course))
	assert.Equal(t, "concurrency-in-practice", course["slug"])

	status, res = env.do(t, http.MethodPost, "/api/v1/materials/courses/", userToken, fiber.Map{"description": "no title"})
	require.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "This field is required.", fieldErrors(res)["title"])
}

func TestCourseUpdatePolicyAndNotification(t *testing.T) {
	env := setupApp(t)
	id := env.courseID(t, userCourse)
	path := fmt.Sprintf("/api/v1/materials/courses/%d/", id)

	require.NoError(t, env.db.Model(&model.Course{}).Where("id = ?", id).
		UpdateColumn("updated_at", time.Now().Add(-5*time.Hour)).Error)

	modToken := env.login(t, "moderator@example.com", "moderator123")
	status, res := env.do(t, http.MethodPatch, path, modToken, fiber.Map{"description": "Reviewed by moderation"})
	require.Equal(t, http.StatusOK, status)

	var course map[string]interface{}
	require.NoError(t, json.Unmarshal(res.Data, &course))
	assert.Equal(t, "Reviewed by moderation", course["description"])

	var events int64
	require.NoError(t, env.db.Model(&model.CourseUpdateEvent{}).Where("course_id = ?", id).Count(&events).Error)
	assert.Equal(t, int64(1), events)

	// second edit falls inside the cooldown
	userToken := env.login(t, "user@example.com", "user123")
	status, _ = env.do(t, http.MethodPut, path, userToken, fiber.Map{"title": "Introduction to Go, 2nd edition"})
	require.Equal(t, http.StatusOK, status)
	require.NoError(t, env.db.Model(&model.CourseUpdateEvent{}).Where("course_id = ?", id).Count(&events).Error)
	assert.Equal(t, int64(1), events)

	status, _ = env.do(t, http.MethodPatch, path, userToken, fiber.Map{"title": "  "})
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestCourseDeletePolicy(t *testing.T) {
	env := setupApp(t)

	modToken := env.login(t, "moderator@example.com", "moderator123")
	userToken := env.login(t, "user@example.com", "user123")
	adminToken := env.login(t, "admin@example.com", "admin123")

	own := fmt.Sprintf("/api/v1/materials/courses/%d/", env.courseID(t, userCourse))
	foreign := fmt.Sprintf("/api/v1/materials/courses/%d/", env.courseID(t, adminCourse))

	status, _ := env.do(t, http.MethodDelete, own, modToken, nil)
	assert.Equal(t, http.StatusForbidden, status)

	status, _ = env.do(t, http.MethodDelete, foreign, userToken, nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = env.do(t, http.MethodDelete, own, userToken, nil)
	assert.Equal(t, http.StatusNoContent, status)

	status, _ = env.do(t, http.MethodDelete, foreign, adminToken, nil)
	assert.Equal(t, http.StatusNoContent, status)

	var lessons, subs int64
	require.NoError(t, env.db.Model(&model.Lesson{}).Count(&lessons).Error)
	require.NoError(t, env.db.Model(&model.Subscription{}).Count(&subs).Error)
	assert.Zero(t, lessons)
	assert.Zero(t, subs)
}

func TestLessonVideoLinkValidation(t *testing.T) {
	env := setupApp(t)
	token := env.login(t, "user@example.com", "user123")
	courseID := env.courseID(t, userCourse)

	status, res := env.do(t, http.MethodPost, "/api/v1/materials/lessons/", token, fiber.Map{
		"title":      "Vimeo lesson",
		"video_link": "https://vimeo.com/123",
		"course":     courseID,
	})
	require.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, fieldErrors(res)["video_link"], "vimeo.com")

	status, res = env.do(t, http.MethodPost, "/api/v1/materials/lessons/", token, fiber.Map{
		"title":      "Short link lesson",
		"video_link": "https://youtu.be/abc123",
		"course":     courseID,
	})
	require.Equal(t, http.StatusCreated, status)

	var lesson map[string]interface{}
	require.NoError(t, json.Unmarshal(res.Data, &lesson))
	assert.Equal(t, float64(courseID), lesson["course"])

	status, _ = env.do(t, http.MethodPost, "/api/v1/materials/lessons/", token, fiber.Map{
		"title":      "Orphan",
		"video_link": "https://youtu.be/abc123",
		"course":     9999,
	})
	assert.Equal(t, http.StatusNotFound, status)

	status, res = env.do(t, http.MethodPost, "/api/v1/materials/lessons/", token, fiber.Map{
		"title":  "No video",
		"course": courseID,
	})
	require.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "This field is required.", fieldErrors(res)["video_link"])

	status, res = env.do(t, http.MethodPost, "/api/v1/materials/lessons/", token, fiber.Map{
		"title":      "Blank video",
		"video_link": "   ",
		"course":     courseID,
	})
	require.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, fieldErrors(res), "video_link")

	lessonPath := fmt.Sprintf("/api/v1/materials/lessons/%v/", lesson["id"])

	status, res = env.do(t, http.MethodPut, lessonPath, token, fiber.Map{
		"title":  "Replaced without video",
		"course": courseID,
	})
	require.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, fieldErrors(res), "video_link")

	status, res = env.do(t, http.MethodPatch, lessonPath, token, fiber.Map{"video_link": ""})
	require.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "This field may not be blank.", fieldErrors(res)["video_link"])

	status, res = env.do(t, http.MethodPatch, lessonPath, token, fiber.Map{
		"video_link": "https://YOUTUBE.com/watch?v=1",
	})
	require.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, fieldErrors(res)["video_link"], "YOUTUBE.com")

	var stored model.Lesson
	require.NoError(t, env.db.First(&stored, lesson["id"]).Error)
	assert.Equal(t, "https://youtu.be/abc123", stored.VideoLink)

	status, res = env.do(t, http.MethodPatch, fmt.Sprintf("/api/v1/materials/lessons/%v/", lesson["id"]), token, fiber.Map{
		"video_link": "https://m.youtube.com/watch?v=1",
	})
	require.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, fieldErrors(res)["video_link"], "m.youtube.com")
}

func TestLessonPolicy(t *testing.T) {
	env := setupApp(t)
	userToken := env.login(t, "user@example.com", "user123")
	modToken := env.login(t, "moderator@example.com", "moderator123")
	adminToken := env.login(t, "admin@example.com", "admin123")

	var userLesson, adminLesson model.Lesson
	require.NoError(t, env.db.Where("course_id = ?", env.courseID(t, userCourse)).Order("id").First(&userLesson).Error)
	require.NoError(t, env.db.Where("course_id = ?", env.courseID(t, adminCourse)).First(&adminLesson).Error)
	userPath := fmt.Sprintf("/api/v1/materials/lessons/%d/", userLesson.ID)
	adminPath := fmt.Sprintf("/api/v1/materials/lessons/%d/", adminLesson.ID)

	// moderators never create
	status, _ := env.do(t, http.MethodPost, "/api/v1/materials/lessons/", modToken, fiber.Map{
		"title":      "Moderated",
		"video_link": "https://youtu.be/abc123",
		"course":     env.courseID(t, userCourse),
	})
	assert.Equal(t, http.StatusForbidden, status)

	status, res := env.do(t, http.MethodPatch, userPath, modToken, fiber.Map{"title": "Edited by moderator"})
	require.Equal(t, http.StatusOK, status)
	var patched map[string]interface{}
	require.NoError(t, json.Unmarshal(res.Data, &patched))
	assert.Equal(t, "Edited by moderator", patched["title"])
	assert.Equal(t, float64(userLesson.OwnerID), patched["owner_id"])

	status, _ = env.do(t, http.MethodDelete, userPath, modToken, nil)
	assert.Equal(t, http.StatusForbidden, status)

	// rows outside the caller's scope are hidden
	status, _ = env.do(t, http.MethodGet, adminPath, userToken, nil)
	assert.Equal(t, http.StatusNotFound, status)
	status, _ = env.do(t, http.MethodPatch, adminPath, userToken, fiber.Map{"title": "Hijacked"})
	assert.Equal(t, http.StatusNotFound, status)
	status, _ = env.do(t, http.MethodDelete, adminPath, userToken, nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = env.do(t, http.MethodGet, "/api/v1/materials/lessons/", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	status, _ = env.do(t, http.MethodDelete, adminPath, adminToken, nil)
	assert.Equal(t, http.StatusNoContent, status)
	status, _ = env.do(t, http.MethodDelete, userPath, userToken, nil)
	assert.Equal(t, http.StatusNoContent, status)

	var remaining int64
	require.NoError(t, env.db.Model(&model.Lesson{}).Count(&remaining).Error)
	assert.Equal(t, int64(1), remaining)
}

func TestMalformedBodyReportsDetails(t *testing.T) {
	env := setupApp(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/users/register/", strings.NewReader(`{"email": `))
	req.Header.Set("Content-Type", "application/json")
	resp, err := env.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var out apiResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, "BAD_REQUEST", out.Error["code"])
	assert.Equal(t, "Invalid request body", out.Error["message"])
	assert.NotEmpty(t, out.Error["details"])
}

func TestLessonListFilterAndScoping(t *testing.T) {
	env := setupApp(t)
	userToken := env.login(t, "user@example.com", "user123")
	modToken := env.login(t, "moderator@example.com", "moderator123")

	status, res := env.do(t, http.MethodGet, "/api/v1/materials/lessons/", userToken, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, int64(2), res.Pagination.Total)

	status, res = env.do(t, http.MethodGet, fmt.Sprintf("/api/v1/materials/lessons/?course=%d", env.courseID(t, adminCourse)), modToken, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, int64(1), res.Pagination.Total)

	status, res = env.do(t, http.MethodGet, "/api/v1/materials/lessons/?search=routing", modToken, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, int64(1), res.Pagination.Total)
}

func TestLessonUpdateTouchesCourse(t *testing.T) {
	env := setupApp(t)
	token := env.login(t, "user@example.com", "user123")
	courseID := env.courseID(t, userCourse)

	require.NoError(t, env.db.Model(&model.Course{}).Where("id = ?", courseID).
		UpdateColumn("updated_at", time.Now().Add(-5*time.Hour)).Error)

	var lesson model.Lesson
	require.NoError(t, env.db.Where("course_id = ?", courseID).First(&lesson).Error)

	status, _ := env.do(t, http.MethodPatch, fmt.Sprintf("/api/v1/materials/lessons/%d/", lesson.ID), token, fiber.Map{"description": "Updated notes"})
	require.Equal(t, http.StatusOK, status)

	var event model.CourseUpdateEvent
	require.NoError(t, env.db.Where("course_id = ?", courseID).First(&event).Error)
	assert.Contains(t, event.Message, lesson.Title)
	assert.Equal(t, model.EventStatusPending, event.Status)
}

func TestSubscriptionToggle(t *testing.T) {
	env := setupApp(t)
	token := env.login(t, "moderator@example.com", "moderator123")
	path := "/api/v1/materials/subscription/"
	courseID := env.courseID(t, adminCourse)

	status, res := env.do(t, http.MethodPost, path, token, fiber.Map{"course_id": courseID})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "subscription added", res.Message)

	status, res = env.do(t, http.MethodGet, path, token, nil)
	require.Equal(t, http.StatusOK, status)
	var subs []map[string]interface{}
	require.NoError(t, json.Unmarshal(res.Data, &subs))
	require.Len(t, subs, 1)
	assert.Equal(t, adminCourse, subs[0]["course_title"])

	status, res = env.do(t, http.MethodPost, path, token, fiber.Map{"course_id": courseID})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "subscription removed", res.Message)

	status, res = env.do(t, http.MethodPost, path, token, fiber.Map{})
	require.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, fieldErrors(res), "course_id")

	status, _ = env.do(t, http.MethodPost, path, token, fiber.Map{"course_id": 9999})
	assert.Equal(t, http.StatusNotFound, status)
}

func TestPayments(t *testing.T) {
	env := setupApp(t)
	token := env.login(t, "user@example.com", "user123")
	courseID := env.courseID(t, userCourse)

	var lesson model.Lesson
	require.NoError(t, env.db.Where("course_id = ?", courseID).First(&lesson).Error)

	path := "/api/v1/users/payments/"

	status, res := env.do(t, http.MethodPost, path, token, fiber.Map{
		"course_id": courseID, "lesson_id": lesson.ID, "amount": 10, "payment_method": "cash",
	})
	require.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, fieldErrors(res), "non_field_errors")

	status, _ = env.do(t, http.MethodPost, path, token, fiber.Map{"amount": 10, "payment_method": "cash"})
	assert.Equal(t, http.StatusBadRequest, status)

	status, res = env.do(t, http.MethodPost, path, token, fiber.Map{"course_id": courseID, "amount": 10.555, "payment_method": "card"})
	require.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, fieldErrors(res), "amount")
	assert.Contains(t, fieldErrors(res), "payment_method")

	status, _ = env.do(t, http.MethodPost, path, token, fiber.Map{"lesson_id": 9999, "amount": 10, "payment_method": "cash"})
	assert.Equal(t, http.StatusNotFound, status)

	status, res = env.do(t, http.MethodPost, path, token, fiber.Map{"lesson_id": lesson.ID, "amount": 19.99, "payment_method": "transfer"})
	require.Equal(t, http.StatusCreated, status)
	var payment map[string]interface{}
	require.NoError(t, json.Unmarshal(res.Data, &payment))
	assert.Equal(t, lesson.Title, payment["lesson_title"])
	assert.Equal(t, "user@example.com", payment["user_email"])

	status, res = env.do(t, http.MethodGet, path+"?payment_method=transfer", token, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, int64(1), res.Pagination.Total)

	adminToken := env.login(t, "admin@example.com", "admin123")
	status, _ = env.do(t, http.MethodGet, fmt.Sprintf("%s%v/", path, payment["id"]), adminToken, nil)
	assert.Equal(t, http.StatusNotFound, status)

	// paid-for rows cannot be deleted
	status, _ = env.do(t, http.MethodDelete, fmt.Sprintf("/api/v1/materials/lessons/%d/", lesson.ID), token, nil)
	assert.Equal(t, http.StatusConflict, status)
	status, _ = env.do(t, http.MethodDelete, fmt.Sprintf("/api/v1/materials/courses/%d/", courseID), token, nil)
	assert.Equal(t, http.StatusConflict, status)
}
