package workspace

// TabUI holds the transient per-tab-set UI markers. At most one tab is being
// renamed and at most one options menu is open, never both at once.
type TabUI struct {
	RenamingID string
	MenuID     string
}

// ToggleMenu opens the options menu of id, or closes it when already open.
// Opening a menu abandons any rename in progress.
func (u TabUI) ToggleMenu(id string) TabUI {
	if u.MenuID == id {
		u.MenuID = ""
		return u
	}
	return TabUI{MenuID: id}
}

// CloseMenu closes the options menu.
func (u TabUI) CloseMenu() TabUI {
	u.MenuID = ""
	return u
}

// BeginRename marks id as being renamed and closes the menu.
func (u TabUI) BeginRename(id string) TabUI {
	return TabUI{RenamingID: id}
}

// CancelRename drops the rename marker.
func (u TabUI) CancelRename() TabUI {
	u.RenamingID = ""
	return u
}

// ConsumeRename returns the id being renamed and clears the marker.
// A second call returns false until a new rename begins.
func (u TabUI) ConsumeRename() (TabUI, string, bool) {
	if u.RenamingID == "" {
		return u, "", false
	}
	id := u.RenamingID
	u.RenamingID = ""
	return u, id, true
}

// Forget clears markers that reference id.
func (u TabUI) Forget(id string) TabUI {
	if u.RenamingID == id {
		u.RenamingID = ""
	}
	if u.MenuID == id {
		u.MenuID = ""
	}
	return u
}
