package services

import (
	"context"
	"testing"

	"github.com/sahilchouksey/edu-materials-api/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func uintPtr(v uint) *uint { return &v }

func TestCreatePaymentRequiresExactlyOneTarget(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	svc := NewPaymentService(db)

	user := createUser(t, db, "user@example.com")
	course := createCourse(t, db, user, "Go")
	lesson := createLesson(t, db, course, "Intro")

	_, err := svc.Create(ctx, user.ID, CreatePaymentInput{Amount: 10, PaymentMethod: model.PaymentMethodCash})
	assert.ErrorIs(t, err, ErrPaymentTarget)

	_, err = svc.Create(ctx, user.ID, CreatePaymentInput{
		CourseID:      uintPtr(course.ID),
		LessonID:      uintPtr(lesson.ID),
		Amount:        10,
		PaymentMethod: model.PaymentMethodCash,
	})
	assert.ErrorIs(t, err, ErrPaymentTarget)
}

func TestCreatePaymentMissingTarget(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	svc := NewPaymentService(db)
	user := createUser(t, db, "user@example.com")

	_, err := svc.Create(ctx, user.ID, CreatePaymentInput{CourseID: uintPtr(404), Amount: 1, PaymentMethod: model.PaymentMethodCash})
	assert.ErrorIs(t, err, ErrCourseNotFound)

	_, err = svc.Create(ctx, user.ID, CreatePaymentInput{LessonID: uintPtr(404), Amount: 1, PaymentMethod: model.PaymentMethodCash})
	assert.ErrorIs(t, err, ErrLessonNotFound)
}

func TestCreateAndListPayments(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	svc := NewPaymentService(db)

	user := createUser(t, db, "user@example.com")
	other := createUser(t, db, "other@example.com")
	course := createCourse(t, db, user, "Go")
	lesson := createLesson(t, db, course, "Intro")

	coursePayment, err := svc.Create(ctx, user.ID, CreatePaymentInput{
		CourseID:      uintPtr(course.ID),
		Amount:        49.99,
		PaymentMethod: model.PaymentMethodTransfer,
	})
	require.NoError(t, err)
	assert.Equal(t, "Go", coursePayment.CourseTitle)
	assert.Equal(t, "user@example.com", coursePayment.UserEmail)
	assert.Nil(t, coursePayment.LessonID)

	lessonPayment, err := svc.Create(ctx, user.ID, CreatePaymentInput{
		LessonID:      uintPtr(lesson.ID),
		Amount:        5,
		PaymentMethod: model.PaymentMethodCash,
	})
	require.NoError(t, err)
	assert.Equal(t, "Intro", lessonPayment.LessonTitle)

	_, err = svc.Create(ctx, other.ID, CreatePaymentInput{
		CourseID:      uintPtr(course.ID),
		Amount:        1,
		PaymentMethod: model.PaymentMethodCash,
	})
	require.NoError(t, err)

	views, total, err := svc.ListForUser(ctx, user.ID, PaymentFilter{Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	require.Len(t, views, 2)

	views, total, err = svc.ListForUser(ctx, user.ID, PaymentFilter{PaymentMethod: model.PaymentMethodCash, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, lessonPayment.ID, views[0].ID)

	views, _, err = svc.ListForUser(ctx, user.ID, PaymentFilter{Order: "amount ASC", Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, 5.0, views[0].Amount)

	_, err = svc.Get(ctx, other.ID, coursePayment.ID)
	assert.ErrorIs(t, err, ErrPaymentNotFound)
}

func TestPaymentReferences(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	svc := NewPaymentService(db)

	user := createUser(t, db, "user@example.com")
	paid := createCourse(t, db, user, "Paid through lesson")
	lesson := createLesson(t, db, paid, "Intro")
	free := createCourse(t, db, user, "Free")

	_, err := svc.Create(ctx, user.ID, CreatePaymentInput{LessonID: uintPtr(lesson.ID), Amount: 3, PaymentMethod: model.PaymentMethodCash})
	require.NoError(t, err)

	has, err := svc.CourseHasPayments(ctx, paid.ID)
	require.NoError(t, err)
	assert.True(t, has)

	has, err = svc.LessonHasPayments(ctx, lesson.ID)
	require.NoError(t, err)
	assert.True(t, has)

	has, err = svc.CourseHasPayments(ctx, free.ID)
	require.NoError(t, err)
	assert.False(t, has)
}

func TestPaymentCheckConstraint(t *testing.T) {
	db := setupTestDB(t)

	user := createUser(t, db, "user@example.com")
	course := createCourse(t, db, user, "Go")
	lesson := createLesson(t, db, course, "Intro")

	both := model.Payment{
		UserID:        user.ID,
		CourseID:      uintPtr(course.ID),
		LessonID:      uintPtr(lesson.ID),
		Amount:        1,
		PaymentMethod: model.PaymentMethodCash,
	}
	assert.Error(t, db.Create(&both).Error)

	neither := model.Payment{UserID: user.ID, Amount: 1, PaymentMethod: model.PaymentMethodCash}
	assert.Error(t, db.Create(&neither).Error)
}
