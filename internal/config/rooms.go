package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// RoomConfig declares one special room.
type RoomConfig struct {
	Name            string   `yaml:"name"`
	Capacity        int      `yaml:"capacity"`
	Location        string   `yaml:"location"`
	Facilities      []string `yaml:"facilities"`
	RestrictedHours string   `yaml:"restricted_hours,omitempty"`
	Notes           string   `yaml:"notes,omitempty"`
}

// RoomsConfig is the root of rooms.yaml.
type RoomsConfig struct {
	Rooms []RoomConfig `yaml:"rooms"`
}

// LoadRoomsConfig loads and validates rooms.yaml.
func LoadRoomsConfig(path string) (*RoomsConfig, error) {
	if path == "" {
		path = "configs/rooms.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rooms config: %w", err)
	}

	var cfg RoomsConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse rooms config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate rooms config: %w", err)
	}

	return &cfg, nil
}

// Validate checks names are present and unique and capacities positive.
func (c *RoomsConfig) Validate() error {
	if len(c.Rooms) == 0 {
		return fmt.Errorf("no rooms defined")
	}

	names := make(map[string]bool)
	for i := range c.Rooms {
		room := &c.Rooms[i]
		room.Name = strings.TrimSpace(room.Name)
		if room.Name == "" {
			return fmt.Errorf("room[%d]: name is required", i)
		}
		if names[room.Name] {
			return fmt.Errorf("room[%d]: duplicate name %q", i, room.Name)
		}
		names[room.Name] = true
		if room.Capacity <= 0 {
			return fmt.Errorf("room %q: capacity must be positive, got %d", room.Name, room.Capacity)
		}
	}
	return nil
}
