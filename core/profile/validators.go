package profile

import (
	"bufio"
	"compress/gzip"
	"fmt"
	"io/fs"
	"regexp"
	"sort"
	"strings"
	"sync"
	"unicode"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/pmezard/go-difflib/difflib"

	"github.com/fatsal/lms/core"
	"github.com/fatsal/lms/core/access"
)

var (
	roleTag  = "role"
	roleText = "invalid role"

	// password policy
	pwdMinLen     = 8
	pwdMinLenTag  = "pwdminlen"
	pwdNoSpaceTag = "pwdnospace"
	pwdNotAllNum  = "pwdnotallnum"
	pwdCplxTag    = "pwdcplx"
	pwdAttrSimTag = "pwdtoosim"
	pwdCommonTag  = "pwdnocommon"
	pwdMaxSim     = .7
	specialRegex  = regexp.MustCompile("[^A-Za-z0-9]")

	passwordTexts = map[string]string{
		pwdMinLenTag:  fmt.Sprintf("password must contain at least %d characters", pwdMinLen),
		pwdNoSpaceTag: "password must not contain whitespace",
		pwdNotAllNum:  "password cannot be entirely numeric",
		pwdCplxTag:    "password must contain at least 1 uppercase character, 1 lowercase character, 1 digit and 1 special character",
		pwdAttrSimTag: "password cannot be similar to user attributes",
		pwdCommonTag:  "password is too common",
	}

	commonPasswords   []string
	commonPasswordsMu sync.RWMutex
)

// InitValidators registers the profile validations on validate.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(roleTag, roleValidation)
	core.RegisterCustomTranslation(validate, translator, roleTag, roleText)

	validate.RegisterStructValidation(profileStructValidation, NewProfile{})
	for tag, text := range passwordTexts {
		core.RegisterCustomTranslation(validate, translator, tag, text)
	}
}

// LoadCommonPasswords reads the gzipped list of common passwords, one per line.
func LoadCommonPasswords(fsys fs.FS, name string) error {
	file, err := fsys.Open(name)
	if err != nil {
		return errors.Wrap(err, "opening common passwords")
	}
	//goland:noinspection GoUnhandledErrorResult
	defer file.Close()

	gzRdr, err := gzip.NewReader(file)
	if err != nil {
		return errors.Wrap(err, "reading common passwords")
	}
	pwds := make([]string, 0, 64)
	scanner := bufio.NewScanner(gzRdr)
	for scanner.Scan() {
		if pwd := strings.TrimSpace(scanner.Text()); pwd != "" {
			pwds = append(pwds, strings.ToLower(pwd))
		}
	}
	if err = scanner.Err(); err != nil {
		return errors.Wrap(err, "scanning common passwords")
	}
	sort.Strings(pwds)

	commonPasswordsMu.Lock()
	commonPasswords = pwds
	commonPasswordsMu.Unlock()
	return nil
}

// Custom Validators

func roleValidation(fl validator.FieldLevel) bool {
	role, ok := fl.Field().Interface().(access.Role)
	return ok && role.Valid()
}

func profileStructValidation(sl validator.StructLevel) {
	np, ok := sl.Current().Interface().(NewProfile)
	if !ok {
		return
	}
	if tag := checkPassword(np.Password, np.FullName, np.IdentityNumber, np.Email); tag != "" {
		sl.ReportError(np.Password, "password", "Password", tag, "")
	}
}

// checkPassword applies the password policy and returns the tag of the first broken rule:
// - minLen: 8
// - no whitespace
// - not all numeric
// - complexity: 1 upper, 1 lower, 1 digit, 1 special
// - not similar to user attributes
// - not a common password
func checkPassword(pwd string, attrs ...string) string {
	var (
		digitCount         int
		hasUpper, hasLower bool
	)

	pwdLen := len([]rune(pwd))
	if pwdLen < pwdMinLen {
		return pwdMinLenTag
	}
	for _, char := range pwd {
		if unicode.IsSpace(char) {
			return pwdNoSpaceTag
		}
		if unicode.IsDigit(char) {
			digitCount++
		}
		hasUpper = hasUpper || unicode.IsUpper(char)
		hasLower = hasLower || unicode.IsLower(char)
	}

	if digitCount == pwdLen {
		return pwdNotAllNum
	}
	if !(hasUpper && hasLower && digitCount > 0 && specialRegex.MatchString(pwd)) {
		return pwdCplxTag
	}

	lpwd := strings.ToLower(pwd)
	for _, attr := range attrs {
		if attr == "" {
			continue
		}
		ratio := difflib.NewMatcher(strings.Split(lpwd, ""), strings.Split(strings.ToLower(attr), "")).QuickRatio()
		if ratio >= pwdMaxSim {
			return pwdAttrSimTag
		}
	}

	commonPasswordsMu.RLock()
	defer commonPasswordsMu.RUnlock()
	if idx := sort.SearchStrings(commonPasswords, lpwd); idx < len(commonPasswords) && commonPasswords[idx] == lpwd {
		return pwdCommonTag
	}
	return ""
}

// CheckPassword validates pwd against the password policy.
func CheckPassword(pwd string, attrs ...string) error {
	if tag := checkPassword(pwd, attrs...); tag != "" {
		return core.NewValidationError(nil, core.FieldError{Field: "password", Error: passwordTexts[tag]})
	}
	return nil
}
