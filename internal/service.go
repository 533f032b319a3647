package internal

import "fmt"

type ServiceType string

const (
	Calendar    ServiceType = "CALENDAR"
	AddressBook ServiceType = "ADDRESS_BOOK"
)

var ServiceTypes = []ServiceType{AddressBook, Calendar}

func ParseServiceType(v string) (ServiceType, error) {
	switch ServiceType(v) {
	case Calendar, AddressBook:
		return ServiceType(v), nil
	}
	switch v {
	case "calendar", "caldav":
		return Calendar, nil
	case "addressbook", "address-book", "contacts", "carddav":
		return AddressBook, nil
	}
	return "", fmt.Errorf("unknown service type %q", v)
}

func (t ServiceType) String() string {
	return string(t)
}

// Authority is the local content store the service type syncs into.
func (t ServiceType) Authority() string {
	if t == Calendar {
		return "calendar"
	}
	return "contacts"
}

// MultipleCollections reports whether more than one collection of this
// type may be selected for sync at once.
func (t ServiceType) MultipleCollections() bool {
	return t == Calendar
}

type Service struct {
	ID          int64
	AccountName string
	Type        ServiceType
}

func (s Service) String() string {
	return s.AccountName + "/" + s.Type.String()
}

// CollectionInfo holds the attributes of a collection owned by discovery.
type CollectionInfo struct {
	URL            string
	ReadOnly       bool
	DisplayName    string
	Description    string
	Color          *int32
	TimeZone       string
	SupportsEvents *bool
	SupportsTasks  *bool
}

type Collection struct {
	CollectionInfo

	ID          int64
	ServiceID   int64
	SyncEnabled bool
}

func (c Collection) String() string {
	if c.DisplayName != "" {
		return fmt.Sprintf("%s (%s)", c.DisplayName, c.URL)
	}
	return c.URL
}
