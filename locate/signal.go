package locate

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Observation is a normalized radio reading, independent of the scan source.
// ID is the device address (BLE MAC or WiFi BSSID). Secondary carries a
// broadcast identifier such as an iBeacon UUID/major/minor string.
type Observation struct {
	ID        string    `json:"id"`
	Secondary string    `json:"secondary,omitempty"`
	Modality  Modality  `json:"modality"`
	RSSI      int       `json:"rssi"`
	Frequency int       `json:"frequency,omitempty"`
	Channel   int       `json:"channel,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// BLEAdvertisement is one advertisement as reported by a scan gateway
type BLEAdvertisement struct {
	Address   string `json:"address"`
	Name      string `json:"name,omitempty"`
	BeaconID  string `json:"beaconId,omitempty"`
	RSSI      int    `json:"rssi"`
	Timestamp int64  `json:"timestamp,omitempty"` // unix millis
}

// WiFiScanRecord is one access point entry from a WiFi scan
type WiFiScanRecord struct {
	BSSID     string `json:"bssid"`
	SSID      string `json:"ssid,omitempty"`
	RSSI      int    `json:"rssi"`
	Frequency int    `json:"frequency,omitempty"` // MHz
	Timestamp int64  `json:"timestamp,omitempty"` // unix millis
}

// NormalizeAddress upper-cases and trims a MAC/BSSID so lookups are stable
func NormalizeAddress(addr string) string {
	return strings.ToUpper(strings.TrimSpace(addr))
}

// FromBLE converts an advertisement into an Observation. received is used
// when the gateway did not stamp the reading.
func FromBLE(adv BLEAdvertisement, received time.Time) Observation {
	secondary := adv.BeaconID
	if secondary == "" {
		secondary = adv.Name
	}
	secondary = strings.TrimSpace(secondary)
	id := NormalizeAddress(adv.Address)
	if id == "" {
		id = secondary
	}
	return Observation{
		ID:        id,
		Secondary: secondary,
		Modality:  ModalityBLE,
		RSSI:      adv.RSSI,
		Frequency: 2402,
		Timestamp: stampOrDefault(adv.Timestamp, received),
	}
}

// FromWiFi converts a scan record into an Observation
func FromWiFi(rec WiFiScanRecord, received time.Time) Observation {
	return Observation{
		ID:        NormalizeAddress(rec.BSSID),
		Secondary: rec.SSID,
		Modality:  ModalityWiFi,
		RSSI:      rec.RSSI,
		Frequency: rec.Frequency,
		Channel:   ChannelForFrequency(rec.Frequency),
		Timestamp: stampOrDefault(rec.Timestamp, received),
	}
}

// ChannelForFrequency maps a WiFi center frequency in MHz to its channel
// number. Unknown bands return 0.
func ChannelForFrequency(mhz int) int {
	switch {
	case mhz == 2484:
		return 14
	case mhz >= 2412 && mhz < 2484:
		return (mhz - 2407) / 5
	case mhz >= 5000 && mhz < 5925:
		return (mhz - 5000) / 5
	case mhz >= 5955 && mhz <= 7115:
		return (mhz - 5950) / 5
	default:
		return 0
	}
}

func stampOrDefault(millis int64, fallback time.Time) time.Time {
	if millis <= 0 {
		return fallback
	}
	return time.UnixMilli(millis)
}

// DecodeBLEPayload parses a gateway payload holding either a single
// advertisement object or an array of them.
func DecodeBLEPayload(payload []byte, received time.Time) ([]Observation, error) {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("empty BLE payload")
	}

	var advs []BLEAdvertisement
	if trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &advs); err != nil {
			return nil, fmt.Errorf("parsing BLE array: %w", err)
		}
	} else {
		var adv BLEAdvertisement
		if err := json.Unmarshal(trimmed, &adv); err != nil {
			return nil, fmt.Errorf("parsing BLE advertisement: %w", err)
		}
		advs = []BLEAdvertisement{adv}
	}

	obs := make([]Observation, 0, len(advs))
	for _, adv := range advs {
		if adv.Address == "" && adv.BeaconID == "" {
			continue
		}
		obs = append(obs, FromBLE(adv, received))
	}
	return obs, nil
}

// DecodeWiFiPayload parses a scan report. Accepts a bare array or an object
// of the form {"results": [...]}.
func DecodeWiFiPayload(payload []byte, received time.Time) ([]WiFiScanRecord, error) {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("empty WiFi payload")
	}

	var recs []WiFiScanRecord
	if trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &recs); err != nil {
			return nil, fmt.Errorf("parsing WiFi scan: %w", err)
		}
	} else {
		var envelope struct {
			Results []WiFiScanRecord `json:"results"`
		}
		if err := json.Unmarshal(trimmed, &envelope); err != nil {
			return nil, fmt.Errorf("parsing WiFi scan envelope: %w", err)
		}
		recs = envelope.Results
	}

	out := recs[:0]
	for _, r := range recs {
		if r.BSSID == "" {
			continue
		}
		if r.Timestamp <= 0 {
			r.Timestamp = received.UnixMilli()
		}
		out = append(out, r)
	}
	return out, nil
}
