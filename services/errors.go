package services

import "errors"

var (
	ErrCourseNotFound  = errors.New("course not found")
	ErrLessonNotFound  = errors.New("lesson not found")
	ErrPaymentNotFound = errors.New("payment not found")
	ErrPaymentTarget   = errors.New("exactly one of course_id or lesson_id must be set")
)
