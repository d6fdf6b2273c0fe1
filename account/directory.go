package account

import (
	"sync"

	"github.com/presbrey/services/command"
)

// Directory is the in-memory authority over all registered accounts and
// grouped nicknames. It owns its entries; callers elsewhere hold account
// names, never long-lived pointers across mutations.
type Directory struct {
	mu       sync.RWMutex
	accounts map[string]*Account // folded account name
	nicks    map[string]string   // folded nick -> account name
}

func NewDirectory() *Directory {
	return &Directory{
		accounts: make(map[string]*Account),
		nicks:    make(map[string]string),
	}
}

// Add registers an account and indexes its grouped nicknames. The account
// name itself is always indexed as a grouped nickname.
func (d *Directory) Add(a *Account) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.accounts[Fold(a.Name)]; ok {
		return command.FaultAlreadyExists
	}
	if !a.HasNick(a.Name) {
		a.Nicks = append([]string{a.Name}, a.Nicks...)
	}
	for _, n := range a.Nicks {
		if _, taken := d.nicks[Fold(n)]; taken {
			return command.FaultAlreadyExists
		}
	}
	d.accounts[Fold(a.Name)] = a
	for _, n := range a.Nicks {
		d.nicks[Fold(n)] = a.Name
	}
	return nil
}

// FindByName looks up an account by its designated name.
func (d *Directory) FindByName(name string) *Account {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.accounts[Fold(name)]
}

// FindByNick looks up the account a nickname is grouped to, which includes
// lookup by the designated name itself.
func (d *Directory) FindByNick(nick string) *Account {
	d.mu.RLock()
	defer d.mu.RUnlock()
	owner, ok := d.nicks[Fold(nick)]
	if !ok {
		return nil
	}
	return d.accounts[Fold(owner)]
}

// NickOwner returns the account name a nickname is grouped to, if any.
func (d *Directory) NickOwner(nick string) (string, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	owner, ok := d.nicks[Fold(nick)]
	return owner, ok
}

// AddNick groups a nickname to the account. maxNicks caps the grouped set;
// bypassCap skips the cap for elevated callers.
func (d *Directory) AddNick(a *Account, nick string, maxNicks int, bypassCap bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if owner, ok := d.nicks[Fold(nick)]; ok {
		if Fold(owner) == Fold(a.Name) {
			return command.FaultNoChange
		}
		return command.FaultAlreadyExists
	}
	if !bypassCap && len(a.Nicks) >= maxNicks {
		return command.FaultTooMany
	}
	a.Nicks = append(a.Nicks, nick)
	d.nicks[Fold(nick)] = a.Name
	return nil
}

// RemoveNick ungroups a nickname. The designated name may never be removed
// this way; use RenameAndRemove for the administrative rename variant.
func (d *Directory) RemoveNick(a *Account, nick string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if owner, ok := d.nicks[Fold(nick)]; !ok || Fold(owner) != Fold(a.Name) {
		return command.FaultNoPrivilege
	}
	if Fold(nick) == Fold(a.Name) {
		return command.FaultNoPrivilege
	}
	d.removeNickLocked(a, nick)
	return nil
}

// RenameAndRemove atomically renames the account to newName (which must
// already be grouped to it) and drops the old designated name from the
// grouped set. This is the only path that removes a designated name while
// other nicknames remain.
func (d *Directory) RenameAndRemove(a *Account, newName string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if Fold(newName) == Fold(a.Name) {
		return command.FaultNoPrivilege
	}
	if owner, ok := d.nicks[Fold(newName)]; !ok || Fold(owner) != Fold(a.Name) {
		return command.FaultNoPrivilege
	}

	oldName := a.Name
	delete(d.accounts, Fold(oldName))
	d.removeNickLocked(a, oldName)
	a.Name = newName
	d.accounts[Fold(newName)] = a
	// reindex remaining nicks to the new owner name
	for _, n := range a.Nicks {
		d.nicks[Fold(n)] = newName
	}
	return nil
}

func (d *Directory) removeNickLocked(a *Account, nick string) {
	delete(d.nicks, Fold(nick))
	for i, n := range a.Nicks {
		if Fold(n) == Fold(nick) {
			a.Nicks = append(a.Nicks[:i], a.Nicks[i+1:]...)
			break
		}
	}
}

// Count returns the number of registered accounts.
func (d *Directory) Count() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.accounts)
}

// Each calls fn for every account. Intended for persistence snapshots.
func (d *Directory) Each(fn func(a *Account)) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, a := range d.accounts {
		fn(a)
	}
}
