package material

// Material is a fabric record addressed by the id printed in its QR code.
type Material struct {
	ID               string   `json:"id"`
	QRCodeID         string   `json:"qrCodeId"`
	MaterialName     string   `json:"materialName"`
	MaterialType     string   `json:"materialType,omitempty"`
	Color            string   `json:"color,omitempty"`
	Manufacturer     string   `json:"manufacturer,omitempty"`
	ProductionDate   string   `json:"productionDate,omitempty"`
	Features         []string `json:"features"`
	CareInstructions string   `json:"careInstructions,omitempty"`
	ImageURL         string   `json:"imageUrl,omitempty"`
}

func (m *Material) Validate() error {
	switch {
	case m.QRCodeID == "":
		return ErrMissingQRCodeID
	case m.MaterialName == "":
		return ErrMissingName
	}
	return nil
}
