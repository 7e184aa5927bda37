package web

import (
	"fmt"
	"mime/multipart"
	"net/http"
	"path"
	"sort"
	"strconv"
	"strings"

	"github.com/keithriordan/foyer/internal/lists"
	"github.com/keithriordan/foyer/internal/models"
	"github.com/keithriordan/foyer/internal/shared"
)

const requiredField = "This field is required."

// FieldErrors maps a form field to its validation message.
type FieldErrors map[string]string

func (e FieldErrors) add(field, message string) {
	if _, ok := e[field]; !ok {
		e[field] = message
	}
}

// Err returns nil when there are no errors, and an [shared.ErrInvalidInput] otherwise.
func (e FieldErrors) Err() error {
	if len(e) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %s", shared.ErrInvalidInput, e.String())
}

// Messages returns "field: message" lines in field order.
func (e FieldErrors) Messages() []string {
	fields := make([]string, 0, len(e))
	for f := range e {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	out := make([]string, 0, len(fields))
	for _, f := range fields {
		out = append(out, f+": "+e[f])
	}
	return out
}

func (e FieldErrors) String() string {
	return strings.Join(e.Messages(), "; ")
}

func field(r *http.Request, name string) string {
	return strings.TrimSpace(r.PostFormValue(name))
}

func checked(r *http.Request, name string) bool {
	switch strings.ToLower(r.PostFormValue(name)) {
	case "y", "yes", "on", "true", "1":
		return true
	}
	return false
}

// ContactForm is the public contact form.
type ContactForm struct {
	Name    string
	Email   string
	Subject string
	Message string
}

func decodeContactForm(r *http.Request) ContactForm {
	return ContactForm{
		Name:    field(r, "name"),
		Email:   field(r, "email"),
		Subject: field(r, "subject"),
		Message: field(r, "message"),
	}
}

func (f ContactForm) Validate() FieldErrors {
	errs := FieldErrors{}
	if f.Name == "" {
		errs.add("name", "Please enter your name.")
	}
	if f.Email == "" {
		errs.add("email", "Please enter your email.")
	} else if !models.ValidEmail(f.Email) {
		errs.add("email", "Please enter a valid email.")
	}
	if f.Subject == "" {
		errs.add("subject", "Please enter a subject.")
	}
	if f.Message == "" {
		errs.add("message", "Please enter a message.")
	}
	return errs
}

// LoginForm is the sign-in form. Next is where to go after a successful login.
type LoginForm struct {
	Email    string
	Password string
	Remember bool
	Next     string
}

func decodeLoginForm(r *http.Request) LoginForm {
	return LoginForm{
		Email:    field(r, "email"),
		Password: r.PostFormValue("password"),
		Remember: checked(r, "remember_me"),
		Next:     r.URL.Query().Get("next"),
	}
}

func (f LoginForm) Validate() FieldErrors {
	errs := FieldErrors{}
	if f.Email == "" {
		errs.add("email", "Please enter your email.")
	} else if !models.ValidEmail(f.Email) {
		errs.add("email", "Please enter a valid email.")
	}
	if f.Password == "" {
		errs.add("password", requiredField)
	}
	return errs
}

// JobForm adds a job listing.
type JobForm struct {
	Title       string
	CompanyName string
	ListingURL  string
}

func decodeJobForm(r *http.Request) JobForm {
	return JobForm{
		Title:       field(r, "title"),
		CompanyName: field(r, "company_name"),
		ListingURL:  field(r, "listing_url"),
	}
}

func (f JobForm) Validate() FieldErrors {
	errs := FieldErrors{}
	if f.Title == "" {
		errs.add("title", "What's the job title?")
	}
	if f.CompanyName == "" {
		errs.add("company_name", "Need a company name")
	}
	if f.ListingURL == "" {
		errs.add("listing_url", "Enter the listing's url")
	} else if !models.ValidURL(f.ListingURL) {
		errs.add("listing_url", "This url is no good")
	}
	return errs
}

// GiftForm adds a wishlist gift with an optional image.
type GiftForm struct {
	Title string
	Body  string
	Image multipart.File
	// ImageExt is the lowercase extension of the uploaded file, without the dot.
	ImageExt string
}

var giftImageExts = map[string]bool{"jpg": true, "jpeg": true, "png": true}

// decodeGiftForm reads a multipart gift form. The caller closes Image when it is set.
func decodeGiftForm(r *http.Request) (GiftForm, error) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil && err != http.ErrNotMultipart {
		return GiftForm{}, fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}

	form := GiftForm{
		Title: field(r, "title"),
		Body:  field(r, "body"),
	}

	file, header, err := r.FormFile("image")
	switch {
	case err == nil && header.Filename != "":
		form.Image = file
		form.ImageExt = strings.ToLower(strings.TrimPrefix(path.Ext(header.Filename), "."))
	case err == nil:
		file.Close()
	case err != http.ErrMissingFile && err != http.ErrNotMultipart:
		return GiftForm{}, fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}
	return form, nil
}

func (f GiftForm) Validate() FieldErrors {
	errs := FieldErrors{}
	if f.Title == "" {
		errs.add("title", requiredField)
	}
	if f.Body == "" {
		errs.add("body", requiredField)
	}
	if f.Image != nil && !giftImageExts[f.ImageExt] {
		errs.add("image", "Images must be jpg, jpeg or png.")
	}
	return errs
}

// ListForm creates a custom list.
type ListForm struct {
	Title string
}

func (f ListForm) Validate() FieldErrors {
	errs := FieldErrors{}
	if f.Title == "" {
		errs.add("title", requiredField)
	} else if len(f.Title) > 100 {
		errs.add("title", "Title must be at most 100 characters.")
	}
	return errs
}

// CategoryForm adds a category to a list.
type CategoryForm struct {
	Name string
}

func (f CategoryForm) Validate() FieldErrors {
	errs := FieldErrors{}
	if f.Name == "" {
		errs.add("name", requiredField)
	}
	return errs
}

// ItemForm adds an item to a category. RawCategoryID is kept for error messages.
type ItemForm struct {
	Name          string
	Quantity      string
	Notes         string
	RawCategoryID string
	CategoryID    int64
}

func decodeItemForm(r *http.Request) ItemForm {
	form := ItemForm{
		Name:          field(r, "name"),
		Quantity:      field(r, "quantity"),
		Notes:         field(r, "notes"),
		RawCategoryID: field(r, "category_id"),
	}
	if id, err := strconv.ParseInt(form.RawCategoryID, 10, 64); err == nil && id > 0 {
		form.CategoryID = id
	}
	return form
}

func (f ItemForm) Validate() FieldErrors {
	errs := FieldErrors{}
	if f.Name == "" {
		errs.add("name", requiredField)
	}
	if f.CategoryID == 0 {
		errs.add("category_id", "Invalid category ID: "+f.RawCategoryID)
	}
	return errs
}

// NewItem converts the form for the list manager.
func (f ItemForm) NewItem() lists.NewItem {
	return lists.NewItem{CategoryID: f.CategoryID, Name: f.Name, Quantity: f.Quantity, Notes: f.Notes}
}

// ShareForm shares a list with another account.
type ShareForm struct {
	Email string
}

func (f ShareForm) Validate() FieldErrors {
	errs := FieldErrors{}
	if f.Email == "" {
		errs.add("email", "Please provide an email address.")
	}
	return errs
}

// ReorderItemsRequest is the JSON body of the item reorder route.
type ReorderItemsRequest struct {
	Items []lists.ItemMove `json:"items"`
}

// Validate accepts any batch. Entries whose item is not in the list, including ids that
// cannot exist, are skipped when the batch is applied.
func (req ReorderItemsRequest) Validate() FieldErrors {
	return FieldErrors{}
}

// ReorderCategoriesRequest is the JSON body of the category reorder route.
type ReorderCategoriesRequest struct {
	Categories []lists.CategoryMove `json:"categories"`
}

// Validate accepts any batch; see [ReorderItemsRequest.Validate].
func (req ReorderCategoriesRequest) Validate() FieldErrors {
	return FieldErrors{}
}
