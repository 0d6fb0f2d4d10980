package core

import "github.com/smarty/prebuilt/contracts"

type CompoundIntegrityCheck struct {
	inners []contracts.IntegrityCheck
}

func NewCompoundIntegrityCheck(inners ...contracts.IntegrityCheck) *CompoundIntegrityCheck {
	return &CompoundIntegrityCheck{inners: inners}
}

func (this *CompoundIntegrityCheck) Verify(expected []contracts.InstalledFile) error {
	for _, inner := range this.inners {
		err := inner.Verify(expected)
		if err != nil {
			return err
		}
	}
	return nil
}
