// Package forms validates user input before anything is sent to the backend.
package forms

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-playground/validator/v10"
)

// MaxImageSize is the largest image accepted for upload.
const MaxImageSize = 10 << 20

// LoginForm is the input of the login command.
type LoginForm struct {
	Username string `validate:"required"`
	Password string `validate:"required"`
}

// RegisterForm is the input of the register command.
type RegisterForm struct {
	Username        string `validate:"required"`
	Password        string `validate:"required,min=6"`
	ConfirmPassword string `validate:"eqfield=Password"`
}

// PostForm is the input of post create and edit. In edit mode empty fields
// are left unchanged, but at least one must be set.
type PostForm struct {
	Title     string
	Content   string
	ImagePath string `validate:"omitempty,file"`
	Edit      bool   `validate:"-"`
}

// messages maps field and failed tag to the text shown to the user.
var messages = map[string]string{
	"Username.required":          "Username is required",
	"Password.required":          "Password is required",
	"Password.min":               "Password must be at least 6 characters",
	"ConfirmPassword.eqfield":    "Passwords do not match",
	"Title.required":             "Title is required",
	"Content.required":           "Content is required",
	"ImagePath.file":             "Image file does not exist",
	"PostForm.nothing_to_update": "Set at least one of title, content or image",
}

// FieldError is one failed field.
type FieldError struct {
	Field   string
	Message string
}

// ValidationError lists every failed field of a form, in declaration order.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	msgs := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		msgs[i] = f.Message
	}
	return strings.Join(msgs, "; ")
}

// Message returns the message for field, or "".
func (e *ValidationError) Message(field string) string {
	for _, f := range e.Fields {
		if f.Field == field {
			return f.Message
		}
	}
	return ""
}

func (e *ValidationError) add(field, msg string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: msg})
}

func (e *ValidationError) orNil() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterStructValidation(validatePostForm, PostForm{})
	return v
}

func validatePostForm(sl validator.StructLevel) {
	f, ok := sl.Current().Interface().(PostForm)
	if !ok {
		return
	}
	if f.Edit {
		if f.Title == "" && f.Content == "" && f.ImagePath == "" {
			sl.ReportError(f, "PostForm", "PostForm", "nothing_to_update", "")
		}
		return
	}
	if f.Title == "" {
		sl.ReportError(f.Title, "Title", "Title", "required", "")
	}
	if f.Content == "" {
		sl.ReportError(f.Content, "Content", "Content", "required", "")
	}
}

// check runs the tag validation and converts failures to a ValidationError.
func check(form any) error {
	err := validate.Struct(form)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validate: %w", err)
	}
	out := &ValidationError{}
	for _, fe := range verrs {
		msg, ok := messages[fe.Field()+"."+fe.Tag()]
		if !ok {
			msg = fmt.Sprintf("%s is invalid", fe.Field())
		}
		out.add(fe.Field(), msg)
	}
	return out
}

// Validate checks the login form. Username is trimmed; the password is taken
// as typed.
func (f *LoginForm) Validate() error {
	f.Username = strings.TrimSpace(f.Username)
	return check(f)
}

// Validate checks the registration form.
func (f *RegisterForm) Validate() error {
	f.Username = strings.TrimSpace(f.Username)
	return check(f)
}

// Validate checks the post form, including the image file when set.
func (f *PostForm) Validate() error {
	f.Title = strings.TrimSpace(f.Title)
	f.Content = strings.TrimSpace(f.Content)
	if err := check(f); err != nil {
		return err
	}
	if f.ImagePath == "" {
		return nil
	}
	out := &ValidationError{}
	if msg := checkImage(f.ImagePath); msg != "" {
		out.add("ImagePath", msg)
	}
	return out.orNil()
}

// checkImage returns a user-facing message when path is not an acceptable
// image.
func checkImage(path string) string {
	info, err := os.Stat(path)
	if err != nil {
		return "Image file does not exist"
	}
	if info.Size() > MaxImageSize {
		return "Image must be at most 10 MB"
	}
	mt, err := mimetype.DetectFile(path)
	if err != nil {
		return "Image file could not be read"
	}
	if !strings.HasPrefix(mt.String(), "image/") {
		return fmt.Sprintf("File must be an image (got %s)", mt.String())
	}
	return ""
}

// ImageType returns the detected MIME type of an image payload.
func ImageType(data []byte) string {
	return mimetype.Detect(data).String()
}

// ImageExtension returns the file extension matching an image payload,
// including the dot, or "" when unknown.
func ImageExtension(data []byte) string {
	return mimetype.Detect(data).Extension()
}
