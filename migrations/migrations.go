package migrations

import "gorm.io/gorm"

// Migration одна ідемпотентна міграція схеми
type Migration struct {
	Name     string
	Up       func(tx *gorm.DB) error
	Rollback func(tx *gorm.DB) error
}

// All повертає міграції в порядку застосування
func All() []Migration {
	return []Migration{
		{Name: "20250802_create_profiles_table", Up: CreateProfilesTable, Rollback: DropProfilesTable},
		{Name: "20250806_add_profiles_credits_check", Up: AddProfilesCreditsCheck, Rollback: DropProfilesCreditsCheck},
	}
}
