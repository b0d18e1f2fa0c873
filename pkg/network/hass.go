package network

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/bromq-dev/nukibridge/pkg/packet"
	"github.com/bromq-dev/nukibridge/pkg/topic"
)

// ErrHASSDisabled is returned by the discovery functions of a lock without HASS config.
var ErrHASSDisabled = errors.New("home assistant discovery disabled")

// HASSConfig describes the lock to Home Assistant's MQTT discovery.
type HASSConfig struct {
	// DiscoveryPrefix is Home Assistant's discovery topic, usually "homeassistant".
	DiscoveryPrefix string

	// DeviceType is the model shown for the device, e.g. "SmartLock".
	DeviceType string
	Name       string
	UID        string

	// Payloads written to the action topic for each command.
	LockAction   string
	UnlockAction string
	OpenAction   string
}

type hassDevice struct {
	IDs          []string `json:"ids"`
	Manufacturer string   `json:"mf"`
	Model        string   `json:"mdl"`
	Name         string   `json:"name"`
}

type hassLock struct {
	Device        hassDevice `json:"dev"`
	BaseTopic     string     `json:"~"`
	Name          string     `json:"name"`
	UniqueID      string     `json:"unique_id"`
	CommandTopic  string     `json:"cmd_t"`
	Availability  string     `json:"avty_t"`
	PayloadLock   string     `json:"pl_lock"`
	PayloadUnlock string     `json:"pl_unlk"`
	PayloadOpen   string     `json:"pl_open"`
	StateTopic    string     `json:"stat_t"`
	StateLocked   string     `json:"stat_locked"`
	StateUnlocked string     `json:"stat_unlocked"`
	Optimistic    string     `json:"opt"`
}

type hassBinarySensor struct {
	Device         hassDevice `json:"dev"`
	BaseTopic      string     `json:"~"`
	Name           string     `json:"name"`
	UniqueID       string     `json:"unique_id"`
	DeviceClass    string     `json:"dev_cla"`
	EntityCategory string     `json:"ent_cat"`
	PayloadOff     string     `json:"pl_off"`
	PayloadOn      string     `json:"pl_on"`
	StateTopic     string     `json:"stat_t"`
}

// hassTopics returns the discovery topics of the lock and battery sensor.
func (c *HASSConfig) hassTopics() (lock, battery string) {
	lock = topic.Join(c.DiscoveryPrefix, "lock/"+c.UID+"/smartlock/config")
	battery = topic.Join(c.DiscoveryPrefix, "binary_sensor/"+c.UID+"/battery_low/config")
	return lock, battery
}

// hassDocuments builds the discovery documents for a lock publishing under base.
func (c *HASSConfig) hassDocuments(base string) (lock, battery []byte, err error) {
	dev := hassDevice{
		IDs:          []string{"nuki_" + c.UID},
		Manufacturer: "Nuki",
		Model:        c.DeviceType,
		Name:         c.Name,
	}

	lock, err = json.Marshal(hassLock{
		Device:        dev,
		BaseTopic:     base,
		Name:          c.Name,
		UniqueID:      c.UID + "_lock",
		CommandTopic:  "~" + TopicLockAction,
		Availability:  "~" + TopicConnectionState,
		PayloadLock:   c.LockAction,
		PayloadUnlock: c.UnlockAction,
		PayloadOpen:   c.OpenAction,
		StateTopic:    "~" + TopicLockBinaryState,
		StateLocked:   "locked",
		StateUnlocked: "unlocked",
		Optimistic:    "false",
	})
	if err != nil {
		return nil, nil, fmt.Errorf("encode lock discovery: %w", err)
	}

	battery, err = json.Marshal(hassBinarySensor{
		Device:         dev,
		BaseTopic:      base,
		Name:           c.Name + " battery low",
		UniqueID:       c.UID + "_battery_low",
		DeviceClass:    "battery",
		EntityCategory: "diagnostic",
		PayloadOff:     "0",
		PayloadOn:      "1",
		StateTopic:     "~" + TopicBatteryCritical,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("encode battery discovery: %w", err)
	}
	return lock, battery, nil
}

// PublishHASSConfig publishes the retained discovery documents of the lock.
func (l *Lock) PublishHASSConfig() error {
	c := l.config.HASS
	if c == nil {
		return ErrHASSDisabled
	}
	lockDoc, batteryDoc, err := c.hassDocuments(l.network.Prefix())
	if err != nil {
		return err
	}
	lockTopic, batteryTopic := c.hassTopics()
	if _, err := l.network.client.Publish(lockTopic, packet.QoS0, true, lockDoc); err != nil {
		return err
	}
	_, err = l.network.client.Publish(batteryTopic, packet.QoS0, true, batteryDoc)
	return err
}

// RemoveHASSConfig clears the retained discovery documents so Home Assistant
// forgets the lock.
func (l *Lock) RemoveHASSConfig() error {
	c := l.config.HASS
	if c == nil {
		return ErrHASSDisabled
	}
	lockTopic, batteryTopic := c.hassTopics()
	if _, err := l.network.client.Publish(lockTopic, packet.QoS0, true, nil); err != nil {
		return err
	}
	_, err := l.network.client.Publish(batteryTopic, packet.QoS0, true, nil)
	return err
}
