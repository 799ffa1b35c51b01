package moodle

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// SiteInfo is the result of core_webservice_get_site_info.
type SiteInfo struct {
	SiteName  string `json:"sitename"`
	Username  string `json:"username"`
	FirstName string `json:"firstname"`
	LastName  string `json:"lastname"`
	UserID    int    `json:"userid"`
}

// Course is one entry of core_enrol_get_users_courses.
type Course struct {
	ID        int    `json:"id"`
	ShortName string `json:"shortname"`
	FullName  string `json:"fullname"`
}

// Timestamp is a Moodle unix time in seconds. Zero means unset.
type Timestamp struct {
	time.Time
}

// UnmarshalJSON accepts a number of seconds or null.
func (t *Timestamp) UnmarshalJSON(b []byte) error {
	s := string(b)
	if s == "null" || s == "0" {
		t.Time = time.Time{}
		return nil
	}
	sec, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("moodle: timestamp %s: %w", s, err)
	}
	t.Time = time.Unix(sec, 0).UTC()
	return nil
}

// MarshalJSON writes seconds, or 0 when unset.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("0"), nil
	}
	return []byte(strconv.FormatInt(t.Unix(), 10)), nil
}

// Assignment is one assignment of mod_assign_get_assignments.
type Assignment struct {
	ID                       int       `json:"id"`
	Name                     string    `json:"name"`
	Course                   int       `json:"course"`
	Intro                    string    `json:"intro"`
	DueDate                  Timestamp `json:"duedate"`
	AllowSubmissionsFromDate Timestamp `json:"allowsubmissionsfromdate"`
}

// Submission is one submission of mod_assign_get_submissions.
type Submission struct {
	ID            int       `json:"id"`
	UserID        int       `json:"userid"`
	Status        string    `json:"status"`
	GradingStatus string    `json:"gradingstatus"`
	TimeCreated   Timestamp `json:"timecreated"`
	TimeModified  Timestamp `json:"timemodified"`
	Plugins       []Plugin  `json:"-"`
}

// UnmarshalJSON decodes plugins by their type discriminator.
func (s *Submission) UnmarshalJSON(b []byte) error {
	type plain Submission
	var raw struct {
		plain
		Plugins []json.RawMessage `json:"plugins"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*s = Submission(raw.plain)
	s.Plugins = make([]Plugin, 0, len(raw.Plugins))
	for _, p := range raw.Plugins {
		plugin, err := decodePlugin(p)
		if err != nil {
			return err
		}
		s.Plugins = append(s.Plugins, plugin)
	}
	return nil
}

// Plugin is submission content contributed by one Moodle submission plugin.
type Plugin interface {
	PluginType() string
}

// Plugin type discriminators.
const (
	PluginOnlineText = "onlinetext"
	PluginFile       = "file"
	PluginComments   = "comments"
)

// OnlineTextPlugin carries text typed into the Moodle editor.
type OnlineTextPlugin struct {
	Text string `json:"text"`
}

// File is one uploaded file.
type File struct {
	Filename string `json:"filename"`
	Filesize int64  `json:"filesize"`
	FileURL  string `json:"fileurl"`
	MimeType string `json:"mimetype"`
}

// FileArea groups the files of one upload area.
type FileArea struct {
	Area  string `json:"area"`
	Files []File `json:"files"`
}

// FilePlugin carries uploaded files.
type FilePlugin struct {
	FileAreas []FileArea `json:"fileareas"`
}

// CommentsPlugin carries submission comments.
type CommentsPlugin struct {
	Name string `json:"name"`
	Text string `json:"text"`
}

// UnknownPlugin keeps plugins this client does not model.
type UnknownPlugin struct {
	Type string
	Raw  json.RawMessage
}

func (OnlineTextPlugin) PluginType() string { return PluginOnlineText }
func (FilePlugin) PluginType() string       { return PluginFile }
func (CommentsPlugin) PluginType() string   { return PluginComments }
func (p UnknownPlugin) PluginType() string  { return p.Type }

// Files lists every file across all file areas.
func (p FilePlugin) Files() []File {
	var out []File
	for _, a := range p.FileAreas {
		out = append(out, a.Files...)
	}
	return out
}

func decodePlugin(raw json.RawMessage) (Plugin, error) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return nil, fmt.Errorf("moodle: decode plugin: %w", err)
	}

	var (
		plugin Plugin
		err    error
	)
	switch head.Type {
	case PluginOnlineText:
		var p OnlineTextPlugin
		err = json.Unmarshal(raw, &p)
		plugin = p
	case PluginFile:
		var p FilePlugin
		err = json.Unmarshal(raw, &p)
		plugin = p
	case PluginComments:
		var p CommentsPlugin
		err = json.Unmarshal(raw, &p)
		plugin = p
	default:
		plugin = UnknownPlugin{Type: head.Type, Raw: raw}
	}
	if err != nil {
		return nil, fmt.Errorf("moodle: decode %s plugin: %w", head.Type, err)
	}
	return plugin, nil
}

// tokenResponse is the body of /login/token.php.
type tokenResponse struct {
	Token string `json:"token"`
	Error string `json:"error"`
}

// exception is the body Moodle returns with status 200 when a web-service
// call fails.
type exception struct {
	Exception string `json:"exception"`
	ErrorCode string `json:"errorcode"`
	Message   string `json:"message"`
}

type assignmentsResponse struct {
	Courses []struct {
		ID          int          `json:"id"`
		Assignments []Assignment `json:"assignments"`
	} `json:"courses"`
}

type submissionsResponse struct {
	Assignments []struct {
		AssignmentID int          `json:"assignmentid"`
		Submissions  []Submission `json:"submissions"`
	} `json:"assignments"`
}
