package migrations

import (
	"gorm.io/gorm"
)

// AddProfilesCreditsCheck забороняє від'ємний баланс кредитів
func AddProfilesCreditsCheck(tx *gorm.DB) error {
	return tx.Exec(`
		DO $$
		BEGIN
			IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = 'chk_profiles_credits_non_negative') THEN
				ALTER TABLE profiles ADD CONSTRAINT chk_profiles_credits_non_negative CHECK (credits >= 0);
			END IF;
		END $$
	`).Error
}

// DropProfilesCreditsCheck видаляє обмеження на кредити
func DropProfilesCreditsCheck(tx *gorm.DB) error {
	return tx.Exec(`ALTER TABLE profiles DROP CONSTRAINT IF EXISTS chk_profiles_credits_non_negative`).Error
}
