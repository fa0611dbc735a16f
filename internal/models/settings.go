package models

// APISettings is the persisted model selection. Read at startup, written on
// every change.
type APISettings struct {
	SelectedModel string `json:"selected_model"`
}

// UIState is the persisted sidebar fold preference.
type UIState struct {
	SidebarFolded bool `json:"sidebar_folded"`
}
