package models

type Role string

const (
	RoleStudent Role = "student"
	RoleTeacher Role = "teacher"
	RoleAdmin   Role = "admin"
)

// ValidRoles lists the accepted roles in the order they are reported to clients.
var ValidRoles = []Role{RoleStudent, RoleTeacher, RoleAdmin}

func (r Role) Valid() bool {
	for _, role := range ValidRoles {
		if r == role {
			return true
		}
	}
	return false
}

// Field names as they appear in JSON bodies and as column names in the profiles table.
const (
	FieldUUID         = "uuid"
	FieldEmail        = "email"
	FieldRole         = "role"
	FieldDisplayName  = "display_name"
	FieldLocation     = "location"
	FieldBirthday     = "birthday"
	FieldGender       = "gender"
	FieldDescription  = "description"
	FieldDisplayImage = "display_image"
	FieldPhone        = "phone"
)

// ProtectedFields are fixed at creation and rejected on update.
var ProtectedFields = []string{FieldUUID, FieldEmail, FieldRole}

// MutableFields is the update allow-list, in column order.
var MutableFields = []string{
	FieldDisplayName,
	FieldLocation,
	FieldBirthday,
	FieldGender,
	FieldDescription,
	FieldDisplayImage,
	FieldPhone,
}

// Columns is every profile column selected back into a Profile, in scan order.
var Columns = append(append([]string{}, ProtectedFields...), MutableFields...)

func IsProtectedField(name string) bool {
	return contains(ProtectedFields, name)
}

func IsMutableField(name string) bool {
	return contains(MutableFields, name)
}

func contains(values []string, target string) bool {
	for _, value := range values {
		if value == target {
			return true
		}
	}
	return false
}

type Profile struct {
	UUID         string  `json:"uuid"`
	Email        string  `json:"email"`
	Role         Role    `json:"role"`
	DisplayName  *string `json:"display_name"`
	Location     *string `json:"location"`
	Birthday     *string `json:"birthday"`
	Gender       *string `json:"gender"`
	Description  *string `json:"description"`
	DisplayImage *string `json:"display_image"`
	Phone        *string `json:"phone"`
}

// Field returns a pointer to the optional field with the given column name,
// or nil when name is not a mutable field.
func (p *Profile) Field(name string) **string {
	switch name {
	case FieldDisplayName:
		return &p.DisplayName
	case FieldLocation:
		return &p.Location
	case FieldBirthday:
		return &p.Birthday
	case FieldGender:
		return &p.Gender
	case FieldDescription:
		return &p.Description
	case FieldDisplayImage:
		return &p.DisplayImage
	case FieldPhone:
		return &p.Phone
	default:
		return nil
	}
}

// PublicView is the subset of fields that can be shown to anyone.
func (p Profile) PublicView() map[string]interface{} {
	return map[string]interface{}{
		FieldDisplayName:  p.DisplayName,
		FieldPhone:        p.Phone,
		FieldBirthday:     p.Birthday,
		FieldGender:       p.Gender,
		FieldDescription:  p.Description,
		FieldDisplayImage: p.DisplayImage,
	}
}

// PrivateView exposes every stored field.
func (p Profile) PrivateView() map[string]interface{} {
	return map[string]interface{}{
		FieldUUID:         p.UUID,
		FieldEmail:        p.Email,
		FieldRole:         p.Role,
		FieldDisplayName:  p.DisplayName,
		FieldLocation:     p.Location,
		FieldBirthday:     p.Birthday,
		FieldGender:       p.Gender,
		FieldDescription:  p.Description,
		FieldDisplayImage: p.DisplayImage,
		FieldPhone:        p.Phone,
	}
}
