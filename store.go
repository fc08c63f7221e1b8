package go_chat_rooms

import (
    "bufio"
    "fmt"
    "os"
    "strings"
    "sync"

    "golang.org/x/crypto/bcrypt"
)

// UserStore persist registered credentials in a newline-delimited
// `username:secret` file.
//
// The file is read once, when the store is opened, and rewritten wholesale
// on each registration. Secrets are stored as bcrypt hashes, so the file
// never holds a plain password. Credentials are never deleted.
type UserStore struct {
    // path of the backing credential file.
    path string

    // Every registered credential, keyed by username. Values are bcrypt
    // hashes of the secret.
    users map[string]string

    // Synchronizes access to users and to the backing file.
    mu sync.Mutex

    // cost supplied to bcrypt when hashing new secrets.
    cost int
}

// OpenUserStore load the credential file at `path`, creating an empty one
// if it doesn't exist yet.
func OpenUserStore(path string) (*UserStore, error) {
    s := &UserStore {
        path: path,
        users: make(map[string]string),
        cost: bcrypt.DefaultCost,
    }

    f, err := os.Open(path)
    if os.IsNotExist(err) {
        return s, s.save()
    } else if err != nil {
        return nil, fmt.Errorf("open credential file: %w", err)
    }
    defer f.Close()

    scanner := bufio.NewScanner(f)
    for scanner.Scan() {
        parts := strings.SplitN(scanner.Text(), ":", 2)
        if len(parts) == 2 {
            s.users[parts[0]] = parts[1]
        }
    }
    if err := scanner.Err(); err != nil {
        return nil, fmt.Errorf("read credential file: %w", err)
    }

    return s, nil
}

// save rewrite the entire credential file from the in-memory map. The
// caller must hold `s.mu` (or be the only reference to the store).
func (s *UserStore) save() error {
    f, err := os.Create(s.path)
    if err != nil {
        return fmt.Errorf("create credential file: %w", err)
    }
    defer f.Close()

    w := bufio.NewWriter(f)
    for username, secret := range s.users {
        fmt.Fprintf(w, "%s:%s\n", username, secret)
    }

    return w.Flush()
}

// Authenticate check whether `username` is registered with a secret
// matching `secret`.
func (s *UserStore) Authenticate(username, secret string) bool {
    s.mu.Lock()
    hash, ok := s.users[username]
    s.mu.Unlock()

    if !ok {
        return false
    }

    return bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret)) == nil
}

// Register store a new credential and rewrite the backing file.
//
// It fails with `UserExists` on a username collision, leaving the stored
// credential untouched.
func (s *UserStore) Register(username, secret string) error {
    hash, err := bcrypt.GenerateFromPassword([]byte(secret), s.cost)
    if err != nil {
        return err
    }

    s.mu.Lock()
    defer s.mu.Unlock()

    if _, ok := s.users[username]; ok {
        return UserExists
    }
    s.users[username] = string(hash)

    return s.save()
}
