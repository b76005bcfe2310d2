package models

import (
	"time"

	"gorm.io/gorm"
)

// Trainer представляет преподавателя учебного центра
type Trainer struct {
	ID        uint           `json:"id" gorm:"primarykey"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"deleted_at" gorm:"index"`

	Name           string `json:"name" gorm:"not null;type:varchar(100)"`
	Phone          string `json:"phone" gorm:"not null;type:varchar(20)"`
	Email          string `json:"email" gorm:"uniqueIndex;not null;type:varchar(120)"`
	Specialization string `json:"specialization" gorm:"type:varchar(200)"`
	IsActive       bool   `json:"is_active" gorm:"default:true"`

	// Связи. Привязки к курсам удаляются вместе с преподавателем.
	TrainerCourses []TrainerCourse `json:"trainer_courses,omitempty" gorm:"foreignKey:TrainerID;constraint:OnDelete:CASCADE"`
	ClassSchedules []ClassSchedule `json:"class_schedules,omitempty" gorm:"foreignKey:TrainerID"`
}

// TableName задает имя таблицы для модели Trainer
func (Trainer) TableName() string {
	return "trainers"
}

// TrainerCourse связывает преподавателя с курсом, который он ведет
type TrainerCourse struct {
	ID uint `json:"id" gorm:"primarykey"`

	TrainerID uint     `json:"trainer_id" gorm:"not null;index"`
	CourseID  uint     `json:"course_id" gorm:"not null;index"`
	Course    *Course  `json:"course,omitempty" gorm:"foreignKey:CourseID"`
	Trainer   *Trainer `json:"-" gorm:"foreignKey:TrainerID"`
}

// TableName задает имя таблицы для модели TrainerCourse
func (TrainerCourse) TableName() string {
	return "trainer_courses"
}

// ClassSchedule представляет занятие в расписании преподавателя
type ClassSchedule struct {
	ID        uint      `json:"id" gorm:"primarykey"`
	CreatedAt time.Time `json:"created_at"`

	TrainerID uint     `json:"trainer_id" gorm:"not null;index"`
	Trainer   *Trainer `json:"trainer,omitempty" gorm:"foreignKey:TrainerID"`
	CourseID  uint     `json:"course_id" gorm:"not null;index"`
	Course    *Course  `json:"course,omitempty" gorm:"foreignKey:CourseID"`

	ClassDate       time.Time `json:"class_date" gorm:"not null;index"`
	StartTime       string    `json:"start_time" gorm:"not null;type:varchar(5)"` // HH:MM
	DurationMinutes int       `json:"duration_minutes" gorm:"default:60"`
	ClassType       string    `json:"class_type" gorm:"default:'Regular';type:varchar(20)"`
	Location        string    `json:"location" gorm:"type:varchar(100)"`
	OnlineLink      string    `json:"online_link" gorm:"type:varchar(500)"`
	Notes           string    `json:"notes" gorm:"type:text"`
	IsCancelled     bool      `json:"is_cancelled" gorm:"default:false"`

	// Ученики занятия удаляются вместе с ним
	ClassStudents []ClassStudent `json:"class_students,omitempty" gorm:"foreignKey:ClassScheduleID;constraint:OnDelete:CASCADE"`
}

// TableName задает имя таблицы для модели ClassSchedule
func (ClassSchedule) TableName() string {
	return "class_schedules"
}

// EndTime возвращает время окончания занятия в формате HH:MM
func (cs *ClassSchedule) EndTime() string {
	start, err := time.Parse("15:04", cs.StartTime)
	if err != nil {
		return cs.StartTime
	}
	return start.Add(time.Duration(cs.DurationMinutes) * time.Minute).Format("15:04")
}

// ClassStudent связывает студента с занятием
type ClassStudent struct {
	ID uint `json:"id" gorm:"primarykey"`

	ClassScheduleID uint           `json:"class_schedule_id" gorm:"not null;index"`
	ClassSchedule   *ClassSchedule `json:"-" gorm:"foreignKey:ClassScheduleID"`
	StudentID       uint           `json:"student_id" gorm:"not null;index"`
	Student         *Student       `json:"student,omitempty" gorm:"foreignKey:StudentID"`

	AttendanceStatus string `json:"attendance_status" gorm:"default:'Scheduled';type:varchar(20)"` // Scheduled, Present, Absent, Late
}

// TableName задает имя таблицы для модели ClassStudent
func (ClassStudent) TableName() string {
	return "class_students"
}
