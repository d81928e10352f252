package repository

import (
	"strings"
)

const (
	PersonalCollection = "PersonalTrainer"
	NestedStudents     = "Aluno"
	RootStudents       = "Alunos"
	Routines           = "Rotinas"
	Workouts           = "Treinos"
	UserTypes          = "user"
)

func Join(parts ...string) string {
	return strings.Join(parts, "/")
}

func PersonalPath(personalID string) string {
	return Join(PersonalCollection, personalID)
}

func UserTypePath(uid string) string {
	return Join(UserTypes, uid)
}

func NestedStudentsPath(personalID string) string {
	return Join(PersonalCollection, personalID, NestedStudents)
}

func NestedStudentPath(personalID, studentID string) string {
	return Join(NestedStudentsPath(personalID), studentID)
}

func RootStudentPath(studentID string) string {
	return Join(RootStudents, studentID)
}

func NestedRoutinesPath(personalID, studentID string) string {
	return Join(NestedStudentPath(personalID, studentID), Routines)
}

func RootRoutinesPath(studentID string) string {
	return Join(RootStudentPath(studentID), Routines)
}

func NestedWorkoutsPath(personalID, studentID, routineID string) string {
	return Join(NestedRoutinesPath(personalID, studentID), routineID, Workouts)
}

func RootWorkoutsPath(studentID, routineID string) string {
	return Join(RootRoutinesPath(studentID), routineID, Workouts)
}

// SplitPath returns the parent collection and the last segment of a
// document path. ok is false for collection paths and empty segments.
func SplitPath(path string) (parent, id string, ok bool) {
	segs := strings.Split(path, "/")
	if len(segs)%2 != 0 {
		return "", "", false
	}
	for _, s := range segs {
		if s == "" {
			return "", "", false
		}
	}
	return strings.Join(segs[:len(segs)-1], "/"), segs[len(segs)-1], true
}

// ValidCollection reports whether path names a collection (odd segment count).
func ValidCollection(path string) bool {
	segs := strings.Split(path, "/")
	if len(segs)%2 != 1 {
		return false
	}
	for _, s := range segs {
		if s == "" {
			return false
		}
	}
	return true
}
