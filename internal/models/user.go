package models

// UserType is the role tag stored at user/{uid}.
type UserType string

const (
	UserTypePersonal UserType = "personal"
	UserTypeAluno    UserType = "aluno"
)

func (t UserType) Valid() bool {
	return t == UserTypePersonal || t == UserTypeAluno
}

func UserTypeFromData(data map[string]interface{}) UserType {
	return UserType(str(data, "type", ""))
}

func (t UserType) Data() map[string]interface{} {
	return map[string]interface{}{"type": string(t)}
}
