package gateway

import (
	"encoding/json"

	"github.com/beije/packet-storefront/internal/catalog"
	"github.com/shopspring/decimal"
)

// Credentials are passed through to the gateway unchanged.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type Session struct {
	Token string
}

// Profile is the user profile without the password hash the gateway also returns.
type Profile struct {
	ID          string      `json:"id"`
	ProfileInfo ProfileInfo `json:"profileInfo"`
}

type ProfileInfo struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	BirthDate string `json:"birthDate"`
	Email     string `json:"email"`
}

// PacketLine is one sub-product and its count in a verification request.
type PacketLine struct {
	ID    string `json:"_id"`
	Count int    `json:"count"`
}

type VerifyRequest struct {
	Lines      []PacketLine
	TotalPrice decimal.Decimal
}

type Verification struct {
	Verified bool
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Message string          `json:"message,omitempty"`
}

type wireToken struct {
	Token string `json:"token"`
}

type wireProfile struct {
	ID          string `json:"_id"`
	AltID       string `json:"id"`
	ProfileInfo struct {
		FirstName string `json:"firstName"`
		LastName  string `json:"lastName"`
		BirthDate string `json:"birthDate"`
		Email     string `json:"email"`
	} `json:"profileInfo"`
}

type wireSubProduct struct {
	ID    string          `json:"_id"`
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
}

type wireProduct struct {
	ID          string           `json:"_id"`
	Title       string           `json:"title"`
	Image       string           `json:"image"`
	Type        string           `json:"type"`
	SubProducts []wireSubProduct `json:"subProducts"`
}

type wirePacket struct {
	ID    string `json:"_id"`
	Title string `json:"title"`
	Image string `json:"image"`
}

type wireCatalog struct {
	Products []wireProduct `json:"products"`
	Packets  []wirePacket  `json:"packets"`
}

type wireVerifyRequest struct {
	Packet     []PacketLine `json:"packet"`
	TotalPrice json.Number  `json:"totalPrice"`
}

func (p wireProfile) toProfile() Profile {
	id := p.ID
	if id == "" {
		id = p.AltID
	}
	return Profile{
		ID: id,
		ProfileInfo: ProfileInfo{
			FirstName: p.ProfileInfo.FirstName,
			LastName:  p.ProfileInfo.LastName,
			BirthDate: p.ProfileInfo.BirthDate,
			Email:     p.ProfileInfo.Email,
		},
	}
}

func (s wireSubProduct) toSubProduct() catalog.SubProduct {
	return catalog.SubProduct{ID: s.ID, Name: s.Name, Price: s.Price}
}
