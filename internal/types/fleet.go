package types

// FleetStatus reports which rover is selected and the full roster. Invariant:
// SelectedEntity must be a member of FleetRoster.
type FleetStatus struct {
	SelectedEntity string   `json:"selected_entity"`
	FleetRoster    []string `json:"fleet_roster"`
	Timestamp      int64    `json:"timestamp"`
}

// ActiveRoversStatus reports the subset of the roster currently subscribed.
// Invariant: ActiveRovers must be a subset of the roster.
type ActiveRoversStatus struct {
	ActiveRovers []string `json:"active_rovers"`
	Timestamp    int64    `json:"timestamp"`
}

type FleetSelectCommand struct {
	EntityID  string `json:"entity_id"`
	Timestamp int64  `json:"timestamp"`
}

// FleetSubscriptionAction is the closed set of fleet-subscription mutations.
type FleetSubscriptionAction string

const (
	SubscriptionActivate   FleetSubscriptionAction = "activate"
	SubscriptionDeactivate FleetSubscriptionAction = "deactivate"
	SubscriptionSetActive  FleetSubscriptionAction = "set_active"
)

type FleetSubscriptionCommand struct {
	Action    FleetSubscriptionAction `json:"action"`
	EntityID  string                  `json:"entity_id,omitempty"`
	EntityIDs []string                `json:"entity_ids,omitempty"`
}

type RoverStatus struct {
	EntityID       string  `json:"entity_id"`
	IsSelected     bool    `json:"is_selected"`
	IsConnected    bool    `json:"is_connected"`
	LastSeen       int64   `json:"last_seen"`
	BatteryLevel   float32 `json:"battery_level"`
	SignalStrength float32 `json:"signal_strength"`
}

type FleetRosterUpdate struct {
	Rovers    []RoverStatus `json:"rovers"`
	Timestamp int64         `json:"timestamp"`
}
