package device

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidPayload is returned when a success payload cannot be decoded.
var ErrInvalidPayload = errors.New("device: invalid identity payload")

// IdentityKind distinguishes the document families the reader returns.
type IdentityKind string

const (
	KindResident      IdentityKind = "resident"
	KindForeign       IdentityKind = "foreign"
	KindHKMacaoTaiwan IdentityKind = "hk_macao_taiwan"
)

// rawIdentity is the reader's JSON payload as delivered.
type rawIdentity struct {
	IDType      string `json:"idType"`
	Name        string `json:"name"`
	EnglishName string `json:"englishName"`
	Gender      string `json:"gender"`
	Nation      string `json:"nation"`
	Birthday    string `json:"birthday"`
	Address     string `json:"address"`
	IDNum       string `json:"idNum"`
	IssueOrg    string `json:"issueOrg"`
	EffectDate  string `json:"effectDate"`
	ExpireDate  string `json:"expireDate"`
	Photo       string `json:"photo"`
	SignCount   string `json:"signCount"`
	PassNum     string `json:"passNum"`
	DN          string `json:"dn"`
}

// Identity is a decoded identity document.
type Identity struct {
	Kind        IdentityKind `json:"kind"`
	Name        string       `json:"name"`
	EnglishName string       `json:"english_name,omitempty"`
	Gender      string       `json:"gender"`
	// Nation is the ethnic group for resident cards and the nationality for
	// foreign permanent resident cards.
	Nation     string `json:"nation,omitempty"`
	BirthYear  string `json:"birth_year"`
	BirthMonth string `json:"birth_month"`
	BirthDay   string `json:"birth_day"`
	Address    string `json:"address,omitempty"`
	Number     string `json:"number"`
	IssuedBy   string `json:"issued_by"`
	ValidFrom  string `json:"valid_from"`
	ValidUntil string `json:"valid_until"`
	SignCount  string `json:"sign_count,omitempty"`
	PassNumber string `json:"pass_number,omitempty"`
	DN         string `json:"dn,omitempty"`
	Photo      []byte `json:"-"`
}

// Validity renders the validity window the way it is printed on the card.
func (id Identity) Validity() string {
	return id.ValidFrom + " - " + id.ValidUntil
}

// DecodeIdentity parses a success payload.
func DecodeIdentity(payload []byte) (Identity, error) {
	if len(payload) == 0 {
		return Identity{}, fmt.Errorf("%w: empty payload", ErrInvalidPayload)
	}
	var raw rawIdentity
	if err := json.Unmarshal(payload, &raw); err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if strings.TrimSpace(raw.IDNum) == "" {
		return Identity{}, fmt.Errorf("%w: missing idNum", ErrInvalidPayload)
	}

	id := Identity{
		Name:       raw.Name,
		Gender:     raw.Gender,
		Number:     raw.IDNum,
		IssuedBy:   raw.IssueOrg,
		ValidFrom:  raw.EffectDate,
		ValidUntil: raw.ExpireDate,
	}
	switch strings.ToUpper(strings.TrimSpace(raw.IDType)) {
	case "I":
		id.Kind = KindForeign
		id.Nation = raw.Nation
		id.EnglishName = raw.EnglishName
	case "J":
		id.Kind = KindHKMacaoTaiwan
		id.Address = raw.Address
		id.SignCount = raw.SignCount
		id.PassNumber = raw.PassNum
	default:
		id.Kind = KindResident
		id.Nation = raw.Nation
		id.Address = raw.Address
		id.DN = raw.DN
	}

	if len(raw.Birthday) == 8 {
		id.BirthYear = raw.Birthday[:4]
		id.BirthMonth = raw.Birthday[4:6]
		id.BirthDay = raw.Birthday[6:]
	} else if raw.Birthday != "" {
		return Identity{}, fmt.Errorf("%w: birthday %q is not yyyymmdd", ErrInvalidPayload, raw.Birthday)
	}

	if raw.Photo != "" {
		photo, err := base64.StdEncoding.DecodeString(raw.Photo)
		if err != nil {
			return Identity{}, fmt.Errorf("%w: photo: %v", ErrInvalidPayload, err)
		}
		id.Photo = photo
	}
	return id, nil
}

// SamplePayload is a synthetic resident card used by the simulated reader.
func SamplePayload() []byte {
	raw := rawIdentity{
		Name:       "Zhang San",
		Gender:     "M",
		Nation:     "Han",
		Birthday:   "19900307",
		Address:    "1 Example Road, Guangzhou",
		IDNum:      "440101199003070011",
		IssueOrg:   "Guangzhou Public Security Bureau",
		EffectDate: "20200101",
		ExpireDate: "20400101",
		Photo:      base64.StdEncoding.EncodeToString([]byte("sample-photo")),
		DN:         "0000000000000000",
	}
	data, _ := json.Marshal(raw)
	return data
}
